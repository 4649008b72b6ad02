package headerstore

import "testing"

func TestAddAndFirst(t *testing.T) {
	s := New()
	s.Add("Content-Type", "text/html")
	s.Add("X-Custom", "a")
	s.Add("X-Custom", "b")

	v, ok := s.First("content-type")
	if !ok || v != "text/html" {
		t.Errorf("First(content-type) = %q, %v", v, ok)
	}

	all := s.All("x-custom")
	if len(all) != 2 || all[0] != "a" || all[1] != "b" {
		t.Errorf("All(x-custom) = %v", all)
	}
}

func TestCaseInsensitiveLookup(t *testing.T) {
	s := New()
	s.Add("HOST", "example.com")
	if !s.Has("host") || !s.Has("Host") || !s.Has("HOST") {
		t.Error("expected case-insensitive Has to match")
	}
}

func TestCookieSplitting(t *testing.T) {
	s := New()
	s.Add("Cookie", "SESSIONID=abc123; theme=dark")
	if s.Cookies["SESSIONID"] != "abc123" {
		t.Errorf("SESSIONID cookie = %q", s.Cookies["SESSIONID"])
	}
	if s.Cookies["theme"] != "dark" {
		t.Errorf("theme cookie = %q", s.Cookies["theme"])
	}
}

func TestRemove(t *testing.T) {
	s := New()
	s.Add("X-Foo", "1")
	s.Remove("x-foo")
	if s.Has("x-foo") {
		t.Error("expected header to be removed")
	}
}

func TestValidateMissingHost(t *testing.T) {
	s := New()
	if err := s.Validate(); err == nil {
		t.Fatal("expected missing-host error")
	}
}

func TestValidateEmptyHost(t *testing.T) {
	s := New()
	s.Add("Host", "   ")
	if err := s.Validate(); err == nil {
		t.Fatal("expected missing-host error for blank host")
	}
}

func TestValidateConflictingContentLength(t *testing.T) {
	s := New()
	s.Add("Host", "x")
	s.Add("Content-Length", "5")
	s.Add("Content-Length", "6")
	if err := s.Validate(); err == nil {
		t.Fatal("expected conflicting content-length error")
	}
}

func TestValidateIdenticalContentLengthDuplicatesOK(t *testing.T) {
	s := New()
	s.Add("Host", "x")
	s.Add("Content-Length", "5")
	s.Add("Content-Length", " 5 ")
	if err := s.Validate(); err != nil {
		t.Fatalf("expected identical duplicate content-length to pass, got %v", err)
	}
}

func TestValidateChunkedWinsOverContentLength(t *testing.T) {
	s := New()
	s.Add("Host", "x")
	s.Add("Content-Length", "5")
	s.Add("Transfer-Encoding", "chunked")
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Has("content-length") {
		t.Error("expected content-length to be dropped when chunked wins")
	}
}

func TestValidateUnsupportedTransferEncoding(t *testing.T) {
	s := New()
	s.Add("Host", "x")
	s.Add("Transfer-Encoding", "gzip")
	if err := s.Validate(); err == nil {
		t.Fatal("expected unsupported transfer-encoding error")
	}
}

func TestValidateInvalidContentLength(t *testing.T) {
	s := New()
	s.Add("Host", "x")
	s.Add("Content-Length", "not-a-number")
	if err := s.Validate(); err == nil {
		t.Fatal("expected invalid content-length error")
	}
}

func TestContentLengthHelper(t *testing.T) {
	s := New()
	s.Add("Host", "x")
	s.Add("Content-Length", "42")
	n, ok := s.ContentLength()
	if !ok || n != 42 {
		t.Errorf("ContentLength() = %d, %v", n, ok)
	}
}

func TestIsChunked(t *testing.T) {
	s := New()
	s.Add("Transfer-Encoding", " Chunked ")
	if !s.IsChunked() {
		t.Error("expected IsChunked to tolerate case and whitespace")
	}
}
