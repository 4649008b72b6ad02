package reactor

import (
	"os"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/watt-labs/webserv/internal/cgiproc"
	"github.com/watt-labs/webserv/internal/config"
	"github.com/watt-labs/webserv/internal/httpparse"
)

// writeItem is one queued outbound chunk: a header+body buffer, optionally
// followed by a file to stream via sendfile(2) once the buffer drains.
type writeItem struct {
	buf        *bytebufferpool.ByteBuffer
	bufOff     int
	file       *os.File
	fileSize   int64
	fileOffset int64
	closeAfter bool

	// access-log bookkeeping for the request this response answers.
	reqStart time.Time
	method   string
	path     string
	status   int
	bytesLen int64
}

// pendingCGI tracks a launched-but-not-yet-finished CGI subprocess the
// reactor polls from its sweep, per §4.6.
type pendingCGI struct {
	proc       *cgiproc.Process
	req        *httpparse.Request
	route      *config.Route
	server     *config.Server
	started    time.Time
	accum      []byte
	killed     bool
	reqStart   time.Time
	method     string
	path       string
	closeAfter bool
}

// conn is one accepted connection's full state: the parser driving its
// read side, and the write queue / pending-CGI state driving its reply.
type conn struct {
	fd      int
	servers []*config.Server

	parser       *httpparse.Parser
	lastActivity time.Time

	writeQueue []*writeItem
	cgi        *pendingCGI
}

const (
	defaultMaxBodySize = 50 * 1024 * 1024
)

func newConn(fd int, servers []*config.Server) *conn {
	var maxBody int64
	for _, s := range servers {
		if s.MaxBodySize > maxBody {
			maxBody = s.MaxBodySize
		}
	}
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}
	return &conn{
		fd:           fd,
		servers:      servers,
		parser:       httpparse.NewParser(maxBody, os.TempDir()),
		lastActivity: time.Now(),
	}
}

// release frees anything this connection still owns: queued response
// buffers/files, a pending CGI subprocess, and any temp files the parser
// was still assembling mid-request (body spill file, in-flight multipart
// part, or already-finished parts of a request that never reached
// COMPLETE).
func (c *conn) release() {
	for _, item := range c.writeQueue {
		bytebufferpool.Put(item.buf)
		if item.file != nil {
			item.file.Close()
		}
	}
	c.writeQueue = nil

	if c.cgi != nil {
		c.cgi.proc.Kill()
		c.cgi.req.CloseBody()
		c.cgi = nil
	}

	if c.parser != nil {
		c.parser.Close()
	}
}
