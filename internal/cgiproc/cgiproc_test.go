package cgiproc

import (
	"bytes"
	"testing"
)

func TestParseDocumentWithHeaders(t *testing.T) {
	raw := []byte("Content-Type: text/plain\r\nStatus: 201 Created\r\n\r\nhello world")
	doc := ParseDocument(raw)
	if doc.Status != 201 {
		t.Errorf("status = %d, want 201", doc.Status)
	}
	if doc.Headers["Content-Type"] != "text/plain" {
		t.Errorf("content-type = %q", doc.Headers["Content-Type"])
	}
	if !bytes.Equal(doc.Body, []byte("hello world")) {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestParseDocumentNoHeaderBlockIsWholeBody(t *testing.T) {
	raw := []byte("just some plain output, no header block here")
	doc := ParseDocument(raw)
	if doc.Status != 200 {
		t.Errorf("status = %d, want 200", doc.Status)
	}
	if !bytes.Equal(doc.Body, raw) {
		t.Errorf("body = %q, want entire output", doc.Body)
	}
}

func TestParseDocumentDefaultsTo200WithoutStatusHeader(t *testing.T) {
	raw := []byte("Content-Type: text/html\r\n\r\n<h1>hi</h1>")
	doc := ParseDocument(raw)
	if doc.Status != 200 {
		t.Errorf("status = %d, want 200", doc.Status)
	}
	if !bytes.Equal(doc.Body, []byte("<h1>hi</h1>")) {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestParseDocumentEmptyOutput(t *testing.T) {
	doc := ParseDocument(nil)
	if doc.Status != 200 || len(doc.Body) != 0 {
		t.Errorf("doc = %+v, want empty 200 body", doc)
	}
}
