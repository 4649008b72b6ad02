package httpparse

import (
	"bytes"
	"strings"
)

// stepMultipart drives the MULTIPART state's three phases: scanning for
// the next boundary delimiter, collecting one part's header block, and
// streaming that part's body until the next boundary. See §4.2 MULTIPART.
func (p *Parser) stepMultipart() (bool, error) {
	switch p.mpPhase {
	case mpSeekBoundary:
		return p.stepMPSeekBoundary()
	case mpPartHeaders:
		return p.stepMPPartHeaders()
	case mpPartBody:
		return p.stepMPPartBody()
	default:
		return false, nil
	}
}

func (p *Parser) stepMPSeekBoundary() (bool, error) {
	delim := append([]byte("--"), p.mpBoundary...)
	idx := bytes.Index(p.buf, delim)
	if idx == -1 {
		if len(p.buf) > MaxHeadersSize {
			return false, ErrMultipartFraming
		}
		return false, nil
	}
	// Need two bytes past the delimiter to decide terminator vs. CRLF.
	need := idx + len(delim) + 2
	if len(p.buf) < need {
		return false, nil
	}
	after := p.buf[idx+len(delim) : idx+len(delim)+2]
	if after[0] == '-' && after[1] == '-' {
		p.buf = p.buf[idx+len(delim)+2:]
		p.finishBody()
		return true, nil
	}
	if after[0] != '\r' || after[1] != '\n' {
		return false, ErrMultipartFraming
	}
	p.buf = p.buf[idx+len(delim)+2:]
	p.mpPhase = mpPartHeaders
	return true, nil
}

func (p *Parser) stepMPPartHeaders() (bool, error) {
	idx := bytes.Index(p.buf, crlfcrlf)
	if idx == -1 {
		if len(p.buf) > MaxHeadersSize {
			return false, ErrMultipartFraming
		}
		return false, nil
	}
	block := p.buf[:idx]
	part, err := parsePartHeaders(block)
	if err != nil {
		return false, err
	}
	p.buf = p.buf[idx+4:]

	if part.IsFile() {
		f, path, ferr := p.createTempFile()
		if ferr != nil {
			return false, ferr
		}
		part.TempFile = f
		part.TempPath = path
	}
	p.mpPart = part
	p.mpPartMem = nil
	p.mpPhase = mpPartBody
	return true, nil
}

func (p *Parser) stepMPPartBody() (bool, error) {
	delim := append([]byte("--"), p.mpBoundary...)
	holdBack := len(delim) + 2

	if idx := bytes.Index(p.buf, delim); idx >= 0 {
		content := p.buf[:idx]
		if len(content) >= 2 && content[len(content)-2] == '\r' && content[len(content)-1] == '\n' {
			content = content[:len(content)-2]
		}
		if err := p.appendPartBody(content); err != nil {
			return false, err
		}
		p.finishPart()
		p.buf = p.buf[idx:]
		p.mpPhase = mpSeekBoundary
		return true, nil
	}

	safeLen := len(p.buf) - holdBack
	if safeLen <= 0 {
		return false, nil
	}
	if err := p.appendPartBody(p.buf[:safeLen]); err != nil {
		return false, err
	}
	p.buf = p.buf[safeLen:]
	return true, nil
}

func (p *Parser) appendPartBody(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	p.bodyRead += int64(len(data))
	if p.bodyRead > p.maxBodySize {
		return ErrBodyTooLarge
	}
	if p.mpPart.IsFile() {
		_, err := p.mpPart.TempFile.Write(data)
		return err
	}
	if int64(len(p.mpPartMem))+int64(len(data)) > MaxMultipartFieldSize {
		return ErrMultipartFieldTooLarge
	}
	p.mpPartMem = append(p.mpPartMem, data...)
	return nil
}

func (p *Parser) finishPart() {
	if p.mpPart.IsFile() {
		p.mpPart.TempFile.Sync()
		p.mpPart.TempFile.Seek(0, 0)
	} else {
		p.mpPart.Data = p.mpPartMem
	}
	p.req.Parts = append(p.req.Parts, p.mpPart)
	p.mpPart = nil
	p.mpPartMem = nil
}

// parsePartHeaders parses one multipart part's header block and extracts
// the Content-Disposition name/filename and Content-Type, per §4.2.
func parsePartHeaders(block []byte) (*Part, error) {
	part := &Part{}
	lines := bytes.Split(block, crlf)
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, ErrMultipartFraming
		}
		name := strings.ToLower(strings.TrimSpace(string(line[:colon])))
		value := strings.TrimSpace(string(line[colon+1:]))
		switch name {
		case "content-disposition":
			part.Name, part.Filename = parseDispositionParams(value)
		case "content-type":
			part.ContentType = value
		}
	}
	if part.Name == "" && part.Filename == "" {
		return nil, ErrMultipartFraming
	}
	return part, nil
}

// parseDispositionParams extracts the name and filename parameters from a
// Content-Disposition header value such as:
//
//	form-data; name="avatar"; filename="cat.png"
func parseDispositionParams(value string) (name, filename string) {
	parts := strings.Split(value, ";")
	for _, raw := range parts[1:] {
		raw = strings.TrimSpace(raw)
		eq := strings.IndexByte(raw, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(raw[:eq]))
		val := strings.TrimSpace(raw[eq+1:])
		val = strings.Trim(val, `"`)
		switch key {
		case "name":
			name = val
		case "filename":
			filename = val
		}
	}
	return name, filename
}
