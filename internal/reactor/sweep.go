package reactor

import (
	"os"
	"time"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"

	"github.com/watt-labs/webserv/internal/cgiproc"
	"github.com/watt-labs/webserv/internal/handlers"
	"github.com/watt-labs/webserv/internal/respbuilder"
	"github.com/watt-labs/webserv/internal/sockettune"
)

const cgiDeadline = 5 * time.Second

// sendFile streams up to fileStreamSlice bytes of f (already positioned
// logically at *offset) to the connection socket fd via sendfile(2).
func sendFile(fd int, f *os.File, offset *int64, total int64) (int, error) {
	remaining := total - *offset
	count := int64(fileStreamSlice)
	if remaining < count {
		count = remaining
	}
	return sockettune.SendFile(fd, int(f.Fd()), offset, int(count))
}

// onWritable implements §4.7 "On writable": one write-queue chunk of
// buffered header/body bytes per tick, then — once that buffer is
// drained — up to fileStreamSlice bytes of any pending file body via
// sendfile(2), so a single large response can't monopolize the loop.
func (r *Reactor) onWritable(c *conn) {
	if len(c.writeQueue) == 0 {
		r.setInterest(c, unix.EPOLLIN)
		return
	}
	item := c.writeQueue[0]

	if item.bufOff < item.buf.Len() {
		n, err := unix.Write(c.fd, item.buf.B[item.bufOff:])
		if err != nil {
			if err != unix.EAGAIN {
				r.closeConn(c)
			}
			return
		}
		item.bufOff += n
		c.lastActivity = time.Now()
		return
	}

	if item.file != nil && item.fileOffset < item.fileSize {
		n, err := sendFile(c.fd, item.file, &item.fileOffset, item.fileSize)
		if err != nil {
			r.closeConn(c)
			return
		}
		if n > 0 {
			c.lastActivity = time.Now()
		}
		if item.fileOffset < item.fileSize {
			return
		}
	}

	r.finishWriteItem(c, item)
}

// finishWriteItem pops a fully-flushed item off the queue, logs it, and
// either advances to the next queued item or flips the connection back to
// readable (or closes it, for a Connection: close response).
func (r *Reactor) finishWriteItem(c *conn, item *writeItem) {
	if item.file != nil {
		item.file.Close()
	}
	bytebufferpool.Put(item.buf)
	c.writeQueue = c.writeQueue[1:]

	if item.method != "" {
		r.access.Log(item.reqStart, item.method, item.path, item.status, item.bytesLen, nil)
	}

	if item.closeAfter {
		r.closeConn(c)
		return
	}
	if len(c.writeQueue) > 0 {
		return
	}
	r.setInterest(c, unix.EPOLLIN)
}

// timeoutSweep closes any connection that has been idle (no read or write
// progress) for longer than idleTimeout, per §4.7's timeout sweep.
// Connections with a pending CGI subprocess are skipped; cgiSweep enforces
// their deadline.
func (r *Reactor) timeoutSweep() {
	now := time.Now()
	var stale []*conn
	for _, c := range r.conns {
		if c.cgi != nil {
			continue
		}
		if now.Sub(c.lastActivity) > idleTimeout {
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		r.closeConn(c)
	}
}

// cgiSweep drains stdout from every pending CGI subprocess, enforces the
// output-size and wall-clock ceilings, and finalizes any that have exited,
// per §4.6's polling loop.
func (r *Reactor) cgiSweep() {
	for _, c := range r.conns {
		if c.cgi == nil {
			continue
		}
		p := c.cgi

		buf := make([]byte, 32*1024)
		for {
			n, err := p.proc.Drain(buf)
			if n > 0 {
				p.accum = append(p.accum, buf[:n]...)
			}
			if n == 0 || err != nil {
				break
			}
			if len(p.accum) > cgiproc.MaxOutput {
				r.finishCGI(c, 413)
				break
			}
		}
		if c.cgi == nil {
			continue
		}

		if exited, exitErr := p.proc.Exited(); exited {
			if exitErr != nil && len(p.accum) == 0 {
				r.finishCGI(c, 500)
				continue
			}
			r.finishCGIDocument(c)
			continue
		}

		if time.Since(p.started) > cgiDeadline {
			p.proc.Kill()
			r.finishCGI(c, 408)
		}
	}
}

// finishCGI builds a status-only error response for a killed/over-limit
// CGI subprocess and resumes the connection's write side.
func (r *Reactor) finishCGI(c *conn, status int) {
	p := c.cgi
	p.proc.Kill()
	resp := respbuilder.New(status)
	handlers.Error(status, p.server, resp)
	p.req.CloseBody()
	c.cgi = nil
	r.enqueue(c, resp, true, p.reqStart, p.method, p.path)
	r.setInterest(c, unix.EPOLLOUT)
}

// finishCGIDocument parses the subprocess's accumulated output as a CGI
// document and queues the resulting response.
func (r *Reactor) finishCGIDocument(c *conn) {
	p := c.cgi
	doc := cgiproc.ParseDocument(p.accum)
	p.proc.Close()
	p.req.CloseBody()

	resp := respbuilder.New(doc.Status)
	for name, value := range doc.Headers {
		resp.Headers.Set(name, value)
	}
	resp.SetBody(doc.Body)

	closeAfter := p.closeAfter
	c.cgi = nil
	r.enqueue(c, resp, closeAfter, p.reqStart, p.method, p.path)
	r.setInterest(c, unix.EPOLLOUT)
}
