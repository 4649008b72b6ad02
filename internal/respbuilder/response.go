// Package respbuilder assembles outgoing HTTP/1.1 responses: a status
// line, a header block, and a body that is either held in memory,
// streamed from a file (the static-file path, handed to the reactor for
// sendfile), or absent. See §4.3.
package respbuilder

import (
	"net/textproto"
	"os"
	"strconv"
	"time"

	"github.com/valyala/bytebufferpool"
	"github.com/watt-labs/webserv/internal/bufpool"
	"github.com/watt-labs/webserv/internal/headerstore"
)

// httpDateFormat is the RFC 7231 §7.1.1.1 IMF-fixdate layout, evaluated
// against a UTC time so the fixed "GMT" literal is always correct.
const httpDateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Response is one outgoing reply. Exactly one of Body or BodyFile is set,
// or neither for a bodyless reply.
type Response struct {
	Status  int
	Headers *headerstore.Store

	Body         []byte
	BodyFile     *os.File
	BodyFileSize int64
}

// New returns a Response with the given status and an empty header store.
func New(status int) *Response {
	return &Response{Status: status, Headers: headerstore.New()}
}

// SetBody sets an in-memory body and its Content-Length header.
func (r *Response) SetBody(data []byte) {
	r.Body = data
	r.Headers.Set("Content-Length", strconv.Itoa(len(data)))
}

// SetBodyFile sets a file body of the given size and its Content-Length
// header. The reactor streams f's contents via sendfile(2); Response does
// not read f itself.
func (r *Response) SetBodyFile(f *os.File, size int64) {
	r.BodyFile = f
	r.BodyFileSize = size
	r.Headers.Set("Content-Length", strconv.FormatInt(size, 10))
}

// Serialize renders the status line, header block, and (if in-memory) the
// body to a pooled buffer. The caller must bufpool.Put the buffer back
// once its bytes have been written to the connection. Date, Server,
// Connection, and (for a bodyless reply) a zero Content-Length are
// injected when the handler left them unset.
func (r *Response) Serialize(closeConn bool) *bytebufferpool.ByteBuffer {
	if _, ok := r.Headers.First("date"); !ok {
		r.Headers.Set("Date", time.Now().UTC().Format(httpDateFormat))
	}
	if _, ok := r.Headers.First("server"); !ok {
		r.Headers.Set("Server", "webserv")
	}
	if _, ok := r.Headers.First("connection"); !ok {
		if closeConn {
			r.Headers.Set("Connection", "close")
		} else {
			r.Headers.Set("Connection", "keep-alive")
		}
	}
	if _, ok := r.Headers.First("content-length"); !ok && r.Body == nil && r.BodyFile == nil {
		r.Headers.Set("Content-Length", "0")
	}

	buf := bufpool.Get()
	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(r.Status))
	buf.WriteByte(' ')
	buf.WriteString(statusText(r.Status))
	buf.WriteString("\r\n")

	r.Headers.VisitAll(func(name, value string) bool {
		buf.WriteString(textproto.CanonicalMIMEHeaderKey(name))
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
		return true
	})
	buf.WriteString("\r\n")

	if r.Body != nil {
		buf.Write(r.Body)
	}

	return buf
}
