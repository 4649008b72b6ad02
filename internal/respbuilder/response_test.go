package respbuilder

import (
	"strings"
	"testing"
)

func TestSerializeInjectsDefaults(t *testing.T) {
	r := New(200)
	r.SetBody([]byte("hi"))
	buf := r.Serialize(false)
	out := buf.String()

	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 2\r\n") {
		t.Errorf("expected Content-Length: 2, got %q", out)
	}
	if !strings.Contains(out, "Connection: keep-alive\r\n") {
		t.Errorf("expected keep-alive connection, got %q", out)
	}
	if !strings.Contains(out, "Date: ") {
		t.Errorf("expected Date header, got %q", out)
	}
	if !strings.Contains(out, "Server: ") {
		t.Errorf("expected Server header, got %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nhi") {
		t.Errorf("expected body to terminate the message, got %q", out)
	}
}

func TestSerializeCloseConnection(t *testing.T) {
	r := New(200)
	buf := r.Serialize(true)
	out := buf.String()
	if !strings.Contains(out, "Connection: close\r\n") {
		t.Errorf("expected close connection, got %q", out)
	}
	if !strings.Contains(out, "Content-Length: 0\r\n") {
		t.Errorf("expected zero content-length for bodyless response, got %q", out)
	}
}

func TestSerializeRespectsExplicitConnectionHeader(t *testing.T) {
	r := New(200)
	r.Headers.Set("Connection", "close")
	buf := r.Serialize(false)
	out := buf.String()
	if !strings.Contains(out, "Connection: close\r\n") {
		t.Errorf("expected explicit close connection to be preserved, got %q", out)
	}
}
