package httpparse

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/watt-labs/webserv/internal/headerstore"
)

// State is one node of the incremental parser's finite state machine,
// per §4.2.
type State uint8

const (
	StateReqLine State = iota
	StateHeaders
	StateBodyFixed
	StateChunkSize
	StateChunkData
	StateChunkTrailer
	StateMultipart
	StateComplete
	StateError
)

// Result is the outcome of a single Parse call.
type Result uint8

const (
	NeedMore Result = iota
	Complete
	ParseError
)

type mpPhase uint8

const (
	mpSeekBoundary mpPhase = iota
	mpPartHeaders
	mpPartBody
)

// Parser is a single connection's incremental HTTP/1.1 parser: a growing
// accumulation buffer plus FSM-local state for the request currently
// being assembled. advance() resets the FSM-local fields only, preserving
// the accumulation buffer so bytes of a pipelined next request survive;
// reset() clears both. See §4.2 and §9 Design Note (a).
//
// Grounded on http11.Parser's buffer-append-and-scan structure, adapted
// from a blocking io.Reader contract to the append(bytes)->FSM-step
// contract §4.2 specifies, which is what makes fragmentation-invariant
// parsing and pipelining possible without reading ahead.
type Parser struct {
	buf   []byte
	state State
	err   error

	maxBodySize int64
	tempDir     string

	leadingCRLF int

	req *Request

	// body assembly (shared by BODY_FIXED and CHUNK_DATA)
	bodyExpected  int64 // -1 when unknown (chunked)
	bodyRead      int64
	usingFile     bool
	bodyFile      *os.File
	bodyPath      string
	bodyMem       []byte
	contentLength int64
	hasCL         bool

	// chunked
	chunkRemaining uint64

	// multipart
	mpBoundary  []byte
	mpPhase     mpPhase
	mpPart      *Part
	mpPartMem   []byte
	mpPartIsNew bool
}

// NewParser creates a parser bounding bodies to maxBodySize bytes and
// spilling large bodies/parts to temp files under tempDir (os.TempDir()
// if empty).
func NewParser(maxBodySize int64, tempDir string) *Parser {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Parser{
		maxBodySize: maxBodySize,
		tempDir:     tempDir,
		state:       StateReqLine,
	}
}

// Parse appends newBytes to the accumulation buffer and advances the FSM
// as far as input permits. See §4.2 for the full contract, including the
// pipelining and error-latching behavior.
func (p *Parser) Parse(newBytes []byte) (Result, *Request, error) {
	if p.state == StateError {
		return ParseError, nil, p.err
	}

	if len(newBytes) > 0 {
		p.buf = append(p.buf, newBytes...)
	}

	for {
		if p.state == StateComplete {
			return Complete, p.req, nil
		}

		progressed, err := p.step()
		if err != nil {
			p.state = StateError
			p.err = err
			return ParseError, nil, err
		}
		if p.state == StateComplete {
			return Complete, p.req, nil
		}
		if !progressed {
			return NeedMore, nil, nil
		}
	}
}

// Advance resets FSM-local state (method, headers, body counters, chunk
// and multipart state, the current parse's temp files) but preserves the
// accumulation buffer, so unconsumed bytes of the next pipelined request
// remain available. Must be called by the orchestrator after taking
// ownership of a Complete request and before parsing again.
func (p *Parser) Advance() {
	p.state = StateReqLine
	p.err = nil
	p.leadingCRLF = 0
	p.req = nil
	p.bodyExpected = 0
	p.bodyRead = 0
	p.usingFile = false
	p.bodyFile = nil
	p.bodyPath = ""
	p.bodyMem = nil
	p.contentLength = 0
	p.hasCL = false
	p.chunkRemaining = 0
	p.mpBoundary = nil
	p.mpPhase = mpSeekBoundary
	p.mpPart = nil
	p.mpPartMem = nil
}

// Reset clears both FSM-local state and the accumulation buffer.
func (p *Parser) Reset() {
	p.Advance()
	p.buf = nil
}

// Close releases every temp file this parser currently owns: the
// in-progress request's spilled body file (if the fixed-body/chunked
// state hasn't reached COMPLETE yet), the multipart part currently being
// streamed, and any multipart parts already finished and appended to the
// in-progress request. Safe to call at any FSM state, including after an
// error or on a connection that never produced a Complete request; this
// is what lets connection teardown guarantee no leftover temp files per
// §3 "Lifecycles" and the testable property in §8.
func (p *Parser) Close() {
	if p.req != nil {
		p.req.CloseBody()
	}
	if p.mpPart != nil {
		p.mpPart.Close()
		p.mpPart = nil
	}
	if p.usingFile && p.bodyFile != nil {
		p.bodyFile.Close()
		os.Remove(p.bodyPath)
		p.bodyFile = nil
	}
}

func (p *Parser) step() (bool, error) {
	switch p.state {
	case StateReqLine:
		return p.stepReqLine()
	case StateHeaders:
		return p.stepHeaders()
	case StateBodyFixed:
		return p.stepBodyFixed()
	case StateChunkSize:
		return p.stepChunkSize()
	case StateChunkData:
		return p.stepChunkData()
	case StateChunkTrailer:
		return p.stepChunkTrailer()
	case StateMultipart:
		return p.stepMultipart()
	default:
		return false, nil
	}
}

func (p *Parser) stepReqLine() (bool, error) {
	for p.leadingCRLF < MaxLeadingCRLF {
		if len(p.buf) < 2 {
			return false, nil
		}
		if p.buf[0] == '\r' && p.buf[1] == '\n' {
			p.buf = p.buf[2:]
			p.leadingCRLF++
			continue
		}
		break
	}
	if p.leadingCRLF >= MaxLeadingCRLF && len(p.buf) >= 2 && p.buf[0] == '\r' && p.buf[1] == '\n' {
		return false, ErrTooManyBlankLines
	}

	idx := bytes.Index(p.buf, crlf)
	if idx == -1 {
		if len(p.buf) > MaxRequestLineSize {
			return false, ErrRequestLineTooLarge
		}
		return false, nil
	}
	line := p.buf[:idx]
	if len(line) > MaxRequestLineSize {
		return false, ErrRequestLineTooLarge
	}

	tokens := bytes.Split(line, []byte(" "))
	if len(tokens) != 3 {
		return false, ErrInvalidRequestLine
	}

	method := ParseMethod(tokens[0])
	if method == MethodUnknown {
		return false, ErrInvalidMethod
	}

	target := tokens[1]
	if len(target) == 0 {
		return false, ErrInvalidRequestLine
	}
	if h := bytes.IndexByte(target, '#'); h >= 0 {
		target = target[:h]
	}

	var rawPath, rawQuery []byte
	if q := bytes.IndexByte(target, '?'); q >= 0 {
		rawPath = target[:q]
		rawQuery = target[q+1:]
	} else {
		rawPath = target
	}
	if len(target) > MaxURILength {
		return false, ErrURITooLong
	}

	if containsDotDotSegment(string(rawPath)) {
		return false, ErrPathTraversal
	}
	decoded, derr := url.PathUnescape(string(rawPath))
	if derr != nil {
		return false, ErrInvalidRequestLine
	}
	if containsDotDotSegment(decoded) {
		return false, ErrPathTraversal
	}

	var version ProtoVersion
	switch {
	case bytes.Equal(tokens[2], http11Bytes):
		version = ProtoHTTP11
	case bytes.Equal(tokens[2], http10Bytes):
		version = ProtoHTTP10
	default:
		return false, ErrInvalidProtocol
	}

	p.req = &Request{
		Method:   method,
		Path:     decoded,
		RawQuery: string(rawQuery),
		Version:  version,
		Headers:  headerstore.New(),
	}

	p.buf = p.buf[idx+2:]
	p.state = StateHeaders
	return true, nil
}

func containsDotDotSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// stepHeaders scans for the header block's terminating blank line. The
// request line's own trailing CRLF was already consumed by stepReqLine, so
// a request with zero headers presents here as a buffer that starts
// directly with the blank line's lone CRLF rather than the full "\r\n\r\n"
// pattern a header-bearing request shows; both cases are handled below.
func (p *Parser) stepHeaders() (bool, error) {
	if len(p.buf) >= 2 && p.buf[0] == '\r' && p.buf[1] == '\n' {
		p.buf = p.buf[2:]
		return p.finishHeaders(nil)
	}

	idx := bytes.Index(p.buf, crlfcrlf)
	if idx == -1 {
		if len(p.buf) > MaxHeadersSize {
			return false, ErrHeadersTooLarge
		}
		return false, nil
	}
	block := p.buf[:idx]
	if len(block) > MaxHeadersSize {
		return false, ErrHeadersTooLarge
	}
	p.buf = p.buf[idx+4:]
	return p.finishHeaders(block)
}

func (p *Parser) finishHeaders(block []byte) (bool, error) {
	if err := parseHeaderBlock(block, p.req.Headers); err != nil {
		return false, err
	}
	if verr := p.req.Headers.Validate(); verr != nil {
		return false, fmt.Errorf("%w: %w", ErrHeaderValidation, verr)
	}

	if conn, ok := p.req.Headers.First("connection"); ok && strings.EqualFold(strings.TrimSpace(conn), "close") {
		p.req.Close = true
	} else if p.req.Version == ProtoHTTP10 {
		if !(ok && strings.EqualFold(strings.TrimSpace(conn), "keep-alive")) {
			p.req.Close = true
		}
	}

	return true, p.dispatchBody()
}

// parseHeaderBlock parses the header block (not including the terminating
// blank line) into store, per §4.2 HEADERS.
func parseHeaderBlock(block []byte, store *headerstore.Store) error {
	if len(block) == 0 {
		return nil
	}
	lines := bytes.Split(block, crlf)

	var curName string
	var curVal strings.Builder
	haveCur := false

	flush := func() error {
		if haveCur {
			store.Add(curName, curVal.String())
			haveCur = false
			curVal.Reset()
		}
		return nil
	}

	for _, line := range lines {
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if !haveCur {
				return ErrInvalidHeader
			}
			curVal.WriteByte(' ')
			curVal.Write(bytes.TrimSpace(line))
			continue
		}

		if err := flush(); err != nil {
			return err
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return ErrInvalidHeader
		}
		name := strings.TrimSpace(string(line[:colon]))
		if name == "" {
			return ErrInvalidHeader
		}
		value := strings.TrimSpace(string(line[colon+1:]))
		curName = name
		curVal.WriteString(value)
		haveCur = true
	}
	return flush()
}

// dispatchBody decides the next state after headers are parsed and
// validated, per §4.2 "Body dispatch".
func (p *Parser) dispatchBody() error {
	if p.req.Headers.IsChunked() {
		p.bodyExpected = -1
		p.state = StateChunkSize
		return nil
	}

	cl, ok := p.req.Headers.ContentLength()
	if !ok {
		cl = 0
	}
	if cl > p.maxBodySize {
		return ErrBodyTooLarge
	}
	p.contentLength = cl
	p.hasCL = true

	if cl == 0 {
		p.state = StateComplete
		return nil
	}

	ct, _ := p.req.Headers.First("content-type")
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "multipart/form-data") {
		boundary, ok := extractBoundary(ct)
		if !ok {
			return ErrMultipartFraming
		}
		p.mpBoundary = []byte(boundary)
		p.req.Parts = make([]*Part, 0, 4)
		p.bodyExpected = cl
		p.state = StateMultipart
		return nil
	}

	p.bodyExpected = cl
	if cl > SpillThreshold {
		f, path, err := p.createTempFile()
		if err != nil {
			return err
		}
		p.usingFile = true
		p.bodyFile = f
		p.bodyPath = path
	} else {
		p.bodyMem = make([]byte, 0, cl)
	}
	p.state = StateBodyFixed
	return nil
}

func extractBoundary(contentType string) (string, bool) {
	parts := strings.Split(contentType, ";")
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(strings.ToLower(part), "boundary=") {
			continue
		}
		val := part[len("boundary="):]
		val = strings.Trim(val, `"`)
		if val == "" {
			return "", false
		}
		return val, true
	}
	return "", false
}

func (p *Parser) createTempFile() (*os.File, string, error) {
	f, err := os.CreateTemp(p.tempDir, "webserv-body-*.tmp")
	if err != nil {
		return nil, "", err
	}
	return f, f.Name(), nil
}

// appendBody routes the fixed-body / chunked-body bytes to memory or the
// spill file, enforcing maxBodySize and migrating to a temp file once the
// spill threshold is crossed.
func (p *Parser) appendBody(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	p.bodyRead += int64(len(data))
	if p.bodyRead > p.maxBodySize {
		return ErrBodyTooLarge
	}

	if p.usingFile {
		_, err := p.bodyFile.Write(data)
		return err
	}

	if int64(len(p.bodyMem))+int64(len(data)) > SpillThreshold {
		f, path, err := p.createTempFile()
		if err != nil {
			return err
		}
		if len(p.bodyMem) > 0 {
			if _, err := f.Write(p.bodyMem); err != nil {
				return err
			}
		}
		p.usingFile = true
		p.bodyFile = f
		p.bodyPath = path
		p.bodyMem = nil
		_, err = f.Write(data)
		return err
	}

	p.bodyMem = append(p.bodyMem, data...)
	return nil
}

func (p *Parser) finishBody() {
	p.req.BodyBytes = p.bodyMem
	if p.usingFile {
		p.bodyFile.Sync()
		p.bodyFile.Seek(0, 0)
		p.req.BodyFile = p.bodyFile
		p.req.BodyPath = p.bodyPath
	}
	p.state = StateComplete
}

func (p *Parser) stepBodyFixed() (bool, error) {
	remaining := p.bodyExpected - p.bodyRead
	if remaining <= 0 {
		p.finishBody()
		return true, nil
	}
	take := int64(len(p.buf))
	if take > remaining {
		take = remaining
	}
	if take == 0 {
		return false, nil
	}
	if err := p.appendBody(p.buf[:take]); err != nil {
		return false, err
	}
	p.buf = p.buf[take:]
	if p.bodyRead >= p.bodyExpected {
		p.finishBody()
	}
	return true, nil
}

func (p *Parser) stepChunkSize() (bool, error) {
	idx := bytes.Index(p.buf, crlf)
	if idx == -1 {
		if len(p.buf) > 4096 {
			return false, ErrChunkedEncoding
		}
		return false, nil
	}
	line := p.buf[:idx]
	if semi := bytes.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false, ErrChunkedEncoding
	}
	size, err := strconv.ParseUint(string(line), 16, 64)
	if err != nil {
		return false, ErrChunkedEncoding
	}
	p.buf = p.buf[idx+2:]
	if size == 0 {
		p.state = StateChunkTrailer
		return true, nil
	}
	p.chunkRemaining = size
	p.state = StateChunkData
	return true, nil
}

func (p *Parser) stepChunkData() (bool, error) {
	if p.chunkRemaining > 0 {
		take := uint64(len(p.buf))
		if take > p.chunkRemaining {
			take = p.chunkRemaining
		}
		if take == 0 {
			return false, nil
		}
		if err := p.appendBody(p.buf[:take]); err != nil {
			return false, err
		}
		p.buf = p.buf[take:]
		p.chunkRemaining -= take
		if p.chunkRemaining > 0 {
			return false, nil
		}
	}
	if len(p.buf) < 2 {
		return false, nil
	}
	if p.buf[0] != '\r' || p.buf[1] != '\n' {
		return false, ErrChunkedEncoding
	}
	p.buf = p.buf[2:]
	p.state = StateChunkSize
	return true, nil
}

func (p *Parser) stepChunkTrailer() (bool, error) {
	if len(p.buf) < 2 {
		return false, nil
	}
	if p.buf[0] != '\r' || p.buf[1] != '\n' {
		return false, ErrChunkedEncoding
	}
	p.buf = p.buf[2:]
	p.finishBody()
	return true, nil
}
