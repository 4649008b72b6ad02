package httpparse

import (
	"os"

	"github.com/watt-labs/webserv/internal/headerstore"
)

// Part is one multipart/form-data part, per §3's multipart-part shape.
// A Part with Filename != "" is a file part whose body streamed to
// TempFile; otherwise it is a field part whose body is in Data.
type Part struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
	TempFile    *os.File
	TempPath    string
}

// IsFile reports whether this part carries a filename (and therefore a
// temp file) rather than inline field data.
func (p *Part) IsFile() bool { return p.Filename != "" }

// Close releases the part's temp file, if any. Safe to call multiple
// times and on field parts (no-op).
func (p *Part) Close() error {
	if p.TempFile == nil {
		return nil
	}
	err := p.TempFile.Close()
	os.Remove(p.TempPath)
	p.TempFile = nil
	return err
}

// Request is the parser's output once a parse reaches COMPLETE: the
// request fingerprint described in §3.
type Request struct {
	Method   Method
	Path     string // percent-decoded, fragment-stripped, ".."-checked
	RawQuery string // raw (undecoded), empty if absent
	Version  ProtoVersion
	Headers  *headerstore.Store

	// Body is exactly one of: BodyBytes set, BodyFile set, or Parts
	// non-nil (multipart). All three are nil/empty for a bodyless request.
	BodyBytes []byte
	BodyFile  *os.File
	BodyPath  string

	Parts []*Part

	// Close mirrors the Connection header's close directive, already
	// folded against protocol-version defaults by the parser.
	Close bool
}

// IsMultipart reports whether this request's body was parsed as
// multipart/form-data (Parts is non-nil, possibly empty).
func (r *Request) IsMultipart() bool { return r.Parts != nil }

// CloseBody releases any temp file(s) owned by this request: the spilled
// body file and every multipart file part. Idempotent.
func (r *Request) CloseBody() {
	if r.BodyFile != nil {
		r.BodyFile.Close()
		os.Remove(r.BodyPath)
		r.BodyFile = nil
	}
	for _, part := range r.Parts {
		part.Close()
	}
}
