package httpparse

import (
	"bytes"
	"strconv"
	"testing"
)

func mustComplete(t *testing.T, p *Parser, raw []byte) *Request {
	t.Helper()
	res, req, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if res != Complete {
		t.Fatalf("expected Complete, got %v", res)
	}
	return req
}

func TestParseSimpleGET(t *testing.T) {
	raw := []byte("GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n")
	p := NewParser(1<<20, t.TempDir())
	req := mustComplete(t, p, raw)

	if req.Method != MethodGET {
		t.Errorf("method = %v, want GET", req.Method)
	}
	if req.Path != "/index.html" {
		t.Errorf("path = %q", req.Path)
	}
	if req.Version != ProtoHTTP11 {
		t.Errorf("version = %v", req.Version)
	}
	host, _ := req.Headers.First("host")
	if host != "example.com" {
		t.Errorf("host = %q", host)
	}
}

// Fragmentation invariance: feeding the same request one byte at a time
// must produce the identical parsed result as feeding it whole.
func TestParseFragmentationInvariance(t *testing.T) {
	raw := []byte("POST /upload?x=1 HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\n\r\nhello")

	p := NewParser(1<<20, t.TempDir())
	var req *Request
	for i := 0; i < len(raw); i++ {
		res, r, err := p.Parse(raw[i : i+1])
		if err != nil {
			t.Fatalf("byte %d: parse error: %v", i, err)
		}
		if res == Complete {
			req = r
			break
		}
	}
	if req == nil {
		t.Fatal("never completed")
	}
	if req.Method != MethodPOST || req.Path != "/upload" || req.RawQuery != "x=1" {
		t.Errorf("unexpected request: %+v", req)
	}
	if !bytes.Equal(req.BodyBytes, []byte("hello")) {
		t.Errorf("body = %q", req.BodyBytes)
	}
}

func TestParsePipelining(t *testing.T) {
	raw := []byte("GET /a HTTP/1.1\r\nHost: h\r\n\r\nGET /b HTTP/1.1\r\nHost: h\r\n\r\n")

	p := NewParser(1<<20, t.TempDir())
	res, req1, err := p.Parse(raw)
	if err != nil || res != Complete {
		t.Fatalf("first parse: res=%v err=%v", res, err)
	}
	if req1.Path != "/a" {
		t.Fatalf("first path = %q", req1.Path)
	}

	p.Advance()
	res, req2, err := p.Parse(nil)
	if err != nil || res != Complete {
		t.Fatalf("second parse: res=%v err=%v", res, err)
	}
	if req2.Path != "/b" {
		t.Fatalf("second path = %q", req2.Path)
	}
}

func TestParseMissingHostRejected(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\n\r\n")
	p := NewParser(1<<20, t.TempDir())
	res, _, err := p.Parse(raw)
	if res != ParseError || err == nil {
		t.Fatalf("expected validation error, got res=%v err=%v", res, err)
	}
}

func TestParseLatchesError(t *testing.T) {
	raw := []byte("BOGUS / HTTP/1.1\r\nHost: h\r\n\r\n")
	p := NewParser(1<<20, t.TempDir())
	res1, _, err1 := p.Parse(raw)
	if res1 != ParseError || err1 != ErrInvalidMethod {
		t.Fatalf("first parse: res=%v err=%v", res1, err1)
	}
	res2, _, err2 := p.Parse(nil)
	if res2 != ParseError || err2 != err1 {
		t.Fatalf("second parse should return same latched error, got res=%v err=%v", res2, err2)
	}
}

func TestParsePathTraversalRejected(t *testing.T) {
	raw := []byte("GET /../etc/passwd HTTP/1.1\r\nHost: h\r\n\r\n")
	p := NewParser(1<<20, t.TempDir())
	_, _, err := p.Parse(raw)
	if err != ErrPathTraversal {
		t.Fatalf("expected ErrPathTraversal, got %v", err)
	}
}

func TestParseChunkedBody(t *testing.T) {
	raw := []byte("POST /x HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")
	p := NewParser(1<<20, t.TempDir())
	req := mustComplete(t, p, raw)
	if !bytes.Equal(req.BodyBytes, []byte("hello world")) {
		t.Errorf("body = %q", req.BodyBytes)
	}
}

func TestParseChunkedFragmented(t *testing.T) {
	raw := []byte("POST /x HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3\r\nabc\r\n0\r\n\r\n")
	p := NewParser(1<<20, t.TempDir())
	var req *Request
	for i := 0; i < len(raw); i++ {
		res, r, err := p.Parse(raw[i : i+1])
		if err != nil {
			t.Fatalf("byte %d: %v", i, err)
		}
		if res == Complete {
			req = r
		}
	}
	if req == nil || !bytes.Equal(req.BodyBytes, []byte("abc")) {
		t.Fatalf("req=%+v", req)
	}
}

func TestParseMultipartFormData(t *testing.T) {
	body := "--XBOUND\r\n" +
		"Content-Disposition: form-data; name=\"field1\"\r\n\r\n" +
		"value1\r\n" +
		"--XBOUND\r\n" +
		"Content-Disposition: form-data; name=\"file1\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"file contents\r\n" +
		"--XBOUND--\r\n"

	raw := "POST /upload HTTP/1.1\r\nHost: h\r\n" +
		"Content-Type: multipart/form-data; boundary=XBOUND\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

	p := NewParser(1<<20, t.TempDir())
	req := mustComplete(t, p, []byte(raw))
	if !req.IsMultipart() {
		t.Fatal("expected multipart")
	}
	if len(req.Parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(req.Parts))
	}
	if req.Parts[0].Name != "field1" || !bytes.Equal(req.Parts[0].Data, []byte("value1")) {
		t.Errorf("part0 = %+v", req.Parts[0])
	}
	if req.Parts[1].Filename != "a.txt" || !req.Parts[1].IsFile() {
		t.Errorf("part1 = %+v", req.Parts[1])
	}
}

