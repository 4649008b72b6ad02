package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/watt-labs/webserv/internal/config"
)

func newTestServer(t *testing.T, routes ...*config.Route) *config.Server {
	t.Helper()
	return &config.Server{ServerName: "example.com", Routes: routes}
}

func TestSelectServerByHostHeader(t *testing.T) {
	a := &config.Server{ServerName: "a.example.com"}
	b := &config.Server{ServerName: "b.example.com"}
	group := []*config.Server{a, b}

	got := SelectServer(group, "b.example.com:8080")
	if got != b {
		t.Errorf("expected server b, got %+v", got)
	}
}

func TestSelectServerFallsBackToDefault(t *testing.T) {
	a := &config.Server{ServerName: "a.example.com"}
	def := &config.Server{ServerName: "b.example.com", DefaultServer: true}
	group := []*config.Server{a, def}

	got := SelectServer(group, "unknown.example.com")
	if got != def {
		t.Errorf("expected default server, got %+v", got)
	}
}

func TestSelectServerFallsBackToFirst(t *testing.T) {
	a := &config.Server{ServerName: "a.example.com"}
	b := &config.Server{ServerName: "b.example.com"}
	group := []*config.Server{a, b}

	got := SelectServer(group, "unknown.example.com")
	if got != a {
		t.Errorf("expected first server, got %+v", got)
	}
}

func TestRouteLongestPrefixMatch(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "api"), 0o755)
	short := &config.Route{Path: "/", Root: dir, Methods: map[string]bool{"GET": true}}
	long := &config.Route{Path: "/api", Root: dir, Methods: map[string]bool{"GET": true}}
	srv := newTestServer(t, short, long)

	d := Route(srv, "GET", "/api/users")
	if d.Route != long {
		t.Errorf("expected longest-prefix route /api to match, got %+v", d.Route)
	}
}

func TestRouteNoMatchIs404(t *testing.T) {
	srv := newTestServer(t, &config.Route{Path: "/only", Root: t.TempDir()})
	d := Route(srv, "GET", "/nope")
	if d.Kind != KindError || d.Status != 404 {
		t.Errorf("expected 404, got %+v", d)
	}
}

func TestRouteMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &config.Route{Path: "/", Root: t.TempDir(), Methods: map[string]bool{"GET": true}})
	d := Route(srv, "DELETE", "/file")
	if d.Kind != KindError || d.Status != 405 {
		t.Errorf("expected 405, got %+v", d)
	}
}

func TestRouteRedirectShortCircuits(t *testing.T) {
	srv := newTestServer(t, &config.Route{Path: "/old", IsRedirect: true, RedirectTo: "/new", RedirectStatusCode: 301})
	d := Route(srv, "GET", "/old")
	if d.Kind != KindRedirect {
		t.Errorf("expected redirect, got %+v", d)
	}
}

func TestRouteStaticFileFound(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("hi"), 0o644)
	srv := newTestServer(t, &config.Route{Path: "/", Root: dir, Methods: map[string]bool{"GET": true}, Index: "index.html"})

	d := Route(srv, "GET", "/index.html")
	if d.Kind != KindStatic {
		t.Errorf("expected static, got %+v", d)
	}
}

func TestRouteDirectoryWithoutListingServesIndex(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("hi"), 0o644)
	srv := newTestServer(t, &config.Route{Path: "/", Root: dir, Methods: map[string]bool{"GET": true}, Index: "index.html"})

	d := Route(srv, "GET", "/")
	if d.Kind != KindStatic {
		t.Errorf("expected index fallback, got %+v", d)
	}
}

func TestRouteDirectoryListingEnabled(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, &config.Route{Path: "/", Root: dir, Methods: map[string]bool{"GET": true}, DirectoryListing: true})

	d := Route(srv, "GET", "/")
	if d.Kind != KindDirectory {
		t.Errorf("expected directory listing, got %+v", d)
	}
}

func TestRouteDirectoryForbiddenWithoutListingOrIndex(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, &config.Route{Path: "/", Root: dir, Methods: map[string]bool{"GET": true}})

	d := Route(srv, "GET", "/")
	if d.Kind != KindError || d.Status != 403 {
		t.Errorf("expected 403, got %+v", d)
	}
}

func TestRouteTraversalBlockedByCanonicalization(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "www"), 0o755)
	os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("nope"), 0o644)
	root := filepath.Join(dir, "www")
	srv := newTestServer(t, &config.Route{Path: "/", Root: root, Methods: map[string]bool{"GET": true}})

	d := Route(srv, "GET", "/../secret.txt")
	if d.Kind != KindError || d.Status != 403 {
		t.Errorf("expected 403 traversal guard, got %+v", d)
	}
}

func TestRouteSessionFixedPath(t *testing.T) {
	srv := newTestServer(t)
	d := Route(srv, "GET", "/session")
	if d.Kind != KindSession {
		t.Errorf("expected session handler, got %+v", d)
	}
}

func TestRouteCGIDetection(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "hello.py")
	os.WriteFile(script, []byte("#!/usr/bin/env python3\n"), 0o755)
	srv := newTestServer(t, &config.Route{Path: "/cgi-bin", Root: dir, CGIExtension: ".py", Methods: map[string]bool{"GET": true}})

	d := Route(srv, "GET", "/cgi-bin/hello.py")
	if d.Kind != KindCGI {
		t.Errorf("expected CGI, got %+v", d)
	}
}
