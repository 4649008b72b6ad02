package reactor

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/watt-labs/webserv/internal/bufpool"
	"github.com/watt-labs/webserv/internal/cgiproc"
	"github.com/watt-labs/webserv/internal/handlers"
	"github.com/watt-labs/webserv/internal/headerstore"
	"github.com/watt-labs/webserv/internal/httpparse"
	"github.com/watt-labs/webserv/internal/respbuilder"
	"github.com/watt-labs/webserv/internal/router"
)

// maxDrainPerTick bounds how many fully-buffered pipelined requests a
// single onReadable call will answer, so one very chatty connection can't
// starve the rest of the loop.
const maxDrainPerTick = 16

// onReadable implements §4.7 "On readable": one non-blocking read, fed to
// the parser, draining every complete request already sitting in the
// accumulation buffer (pipelining) before yielding back to the loop.
func (r *Reactor) onReadable(c *conn) {
	c.lastActivity = time.Now()

	buf := bufpool.GetFixed(readBufSize)
	n, err := unix.Read(c.fd, buf)

	if err != nil {
		bufpool.PutFixed(buf)
		if err == unix.EAGAIN {
			return
		}
		r.closeConn(c)
		return
	}
	if n == 0 {
		bufpool.PutFixed(buf)
		r.closeConn(c)
		return
	}

	chunk := make([]byte, n)
	copy(chunk, buf[:n])
	bufpool.PutFixed(buf)

	result, req, perr := c.parser.Parse(chunk)
	for i := 0; i < maxDrainPerTick; i++ {
		switch result {
		case httpparse.NeedMore:
			r.flushOrWait(c)
			return

		case httpparse.ParseError:
			r.enqueueError(c, statusForParseError(perr), true)
			c.parser.Reset()
			r.flushOrWait(c)
			return

		case httpparse.Complete:
			r.handleRequest(c, req)
			c.parser.Advance()
			if c.cgi != nil {
				// A CGI launch suspends further reads until it completes;
				// any remaining pipelined bytes stay buffered in the
				// parser and are re-parsed once the sweep finalizes it.
				r.setInterest(c, 0)
				return
			}
			result, req, perr = c.parser.Parse(nil)
			continue
		}
		break
	}
	r.flushOrWait(c)
}

// statusForParseError maps a parser-latched error to the HTTP status §7's
// error-kind table assigns it: path traversal/disallowed access is 403,
// a body (or multipart field) exceeding its size ceiling is 413, an
// unsupported Transfer-Encoding is 501, and every other malformed-input
// sentinel (bad request line, bad header, bad chunk framing, and the
// remaining header-validation reasons) is 400.
func statusForParseError(err error) int {
	switch err {
	case httpparse.ErrPathTraversal:
		return 403
	case httpparse.ErrBodyTooLarge, httpparse.ErrMultipartFieldTooLarge:
		return 413
	}
	var verr *headerstore.ValidationError
	if errors.As(err, &verr) && verr.Reason == "unsupported transfer-encoding" {
		return 501
	}
	return 400
}

// flushOrWait sets the connection's epoll interest to writable if a
// response is already queued, or leaves it readable otherwise.
func (r *Reactor) flushOrWait(c *conn) {
	if len(c.writeQueue) > 0 {
		r.setInterest(c, unix.EPOLLOUT)
		return
	}
	r.setInterest(c, unix.EPOLLIN)
}

// handleRequest routes req, runs its handler (or launches its CGI
// subprocess), and queues the resulting response. A panic inside any
// handler is recovered here and turned into a 500 rather than taking down
// the event loop, mirroring bolt's recovery middleware.
func (r *Reactor) handleRequest(c *conn, req *httpparse.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			req.CloseBody()
			resp := respbuilder.New(500)
			handlers.Error(500, nil, resp)
			r.enqueueResponseFor(c, req, resp, time.Now())
		}
	}()
	start := time.Now()
	host, _ := req.Headers.First("host")
	srv := router.SelectServer(c.servers, host)
	if srv == nil {
		r.enqueueResponseFor(c, req, respbuilder.New(400), start)
		return
	}

	decision := router.Route(srv, req.Method.String(), req.Path)

	if decision.Kind == router.KindCGI {
		r.launchCGI(c, req, decision, start)
		return
	}

	resp := respbuilder.New(decision.Status)
	var herr error
	switch decision.Kind {
	case router.KindError:
		herr = handlers.Error(decision.Status, decision.Server, resp)
	case router.KindRedirect:
		herr = handlers.Redirect(decision.Route, resp)
	case router.KindStatic:
		herr = handlers.StaticFile(decision.TargetPath, resp)
	case router.KindDirectory:
		herr = handlers.Directory(req.Path, decision.TargetPath, resp)
	case router.KindUpload:
		herr = handlers.Upload(req, decision.Route, decision.TargetPath, resp)
	case router.KindDelete:
		herr = handlers.Delete(decision.TargetPath, resp)
	case router.KindSession:
		herr = handlers.Session(r.sessionStore, req, resp)
	}
	if herr != nil {
		resp = respbuilder.New(500)
		handlers.Error(500, decision.Server, resp)
	}

	req.CloseBody()
	r.enqueueResponseFor(c, req, resp, start)
}

// launchCGI starts the subprocess and parks the connection's write side
// until cgiSweep finalizes it; req's temp files stay open until then.
func (r *Reactor) launchCGI(c *conn, req *httpparse.Request, decision router.Decision, start time.Time) {
	proc, err := cgiproc.Launch(decision.TargetPath, req, req.RawQuery)
	if err != nil {
		resp := respbuilder.New(cgiLaunchStatus(err))
		handlers.Error(cgiLaunchStatus(err), decision.Server, resp)
		req.CloseBody()
		r.enqueueResponseFor(c, req, resp, start)
		return
	}
	c.cgi = &pendingCGI{
		proc:       proc,
		req:        req,
		route:      decision.Route,
		server:     decision.Server,
		started:    time.Now(),
		reqStart:   start,
		method:     req.Method.String(),
		path:       req.Path,
		closeAfter: req.Close,
	}
}

func cgiLaunchStatus(err error) int {
	switch err {
	case cgiproc.ErrScriptNotFound:
		return 404
	case cgiproc.ErrScriptNotExecutable:
		return 403
	default:
		return 500
	}
}

// enqueueError builds and queues a status-only error response, used for
// parse failures where no Request was ever completed.
func (r *Reactor) enqueueError(c *conn, status int, closeAfter bool) {
	resp := respbuilder.New(status)
	handlers.Error(status, nil, resp)
	r.enqueue(c, resp, closeAfter, time.Now(), "", "")
}

func (r *Reactor) enqueueResponseFor(c *conn, req *httpparse.Request, resp *respbuilder.Response, start time.Time) {
	r.enqueue(c, resp, req.Close, start, req.Method.String(), req.Path)
}

// enqueue serializes resp and appends it to the connection's write queue.
func (r *Reactor) enqueue(c *conn, resp *respbuilder.Response, closeAfter bool, start time.Time, method, path string) {
	buf := resp.Serialize(closeAfter)
	item := &writeItem{
		buf:        buf,
		file:       resp.BodyFile,
		fileSize:   resp.BodyFileSize,
		closeAfter: closeAfter,
		reqStart:   start,
		method:     method,
		path:       path,
		status:     resp.Status,
		bytesLen:   int64(len(resp.Body)) + resp.BodyFileSize,
	}
	c.writeQueue = append(c.writeQueue, item)
}
