// Package router implements §4.4: virtual-host selection, longest-prefix
// route matching, and filesystem target resolution with a canonicalization
// based path-traversal guard.
package router

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/watt-labs/webserv/internal/config"
)

// Kind tags which handler variant the router selected, per §9's "tagged
// variant" note — the orchestrator switches on this rather than calling
// through a polymorphic interface.
type Kind uint8

const (
	KindError Kind = iota
	KindRedirect
	KindStatic
	KindDirectory
	KindUpload
	KindDelete
	KindSession
	KindCGI
)

// Decision is the router's output: which handler to run and the resolved
// filesystem target (when applicable).
type Decision struct {
	Kind   Kind
	Status int // meaningful for KindError

	Route  *config.Route
	Server *config.Server

	// TargetPath is the canonicalized filesystem path resolved from the
	// request path and the route's root.
	TargetPath string
	IsDir      bool
}

// SelectServer picks the virtual host for a bound (host,port) group by the
// request's Host header, per §4.4: match server_name, else the default
// server for the group, else the first.
func SelectServer(group []*config.Server, hostHeader string) *config.Server {
	if len(group) == 0 {
		return nil
	}
	name := hostHeader
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}
	for _, s := range group {
		if s.ServerName == name {
			return s
		}
	}
	for _, s := range group {
		if s.DefaultServer {
			return s
		}
	}
	return group[0]
}

// Route matches requestPath against srv's routes and resolves a Decision,
// following the eight steps of §4.4 in order.
func Route(srv *config.Server, method, requestPath string) Decision {
	if requestPath == "/session" {
		return Decision{Kind: KindSession, Server: srv}
	}

	route := matchRoute(srv, requestPath)
	if route == nil {
		return Decision{Kind: KindError, Status: 404, Server: srv}
	}

	if route.IsRedirect {
		return Decision{Kind: KindRedirect, Route: route, Server: srv}
	}

	if len(route.Methods) > 0 && !route.Methods[method] {
		return Decision{Kind: KindError, Status: 405, Route: route, Server: srv}
	}

	target, err := resolveTarget(route, requestPath)
	if err != nil {
		return Decision{Kind: KindError, Status: 403, Route: route, Server: srv}
	}

	info, statErr := os.Stat(target)

	if route.CGIExtension != "" && statErr == nil && !info.IsDir() && strings.HasSuffix(target, route.CGIExtension) {
		return Decision{Kind: KindCGI, Route: route, Server: srv, TargetPath: target}
	}

	switch method {
	case "POST":
		return Decision{Kind: KindUpload, Route: route, Server: srv, TargetPath: target}
	case "DELETE":
		return Decision{Kind: KindDelete, Route: route, Server: srv, TargetPath: target}
	}

	if statErr == nil && info.IsDir() {
		if route.DirectoryListing {
			return Decision{Kind: KindDirectory, Route: route, Server: srv, TargetPath: target, IsDir: true}
		}
		if idx := resolveIndex(target, route.Index); idx != "" {
			return Decision{Kind: KindStatic, Route: route, Server: srv, TargetPath: idx}
		}
		return Decision{Kind: KindError, Status: 403, Route: route, Server: srv}
	}

	if statErr != nil {
		return Decision{Kind: KindError, Status: 404, Route: route, Server: srv}
	}

	return Decision{Kind: KindStatic, Route: route, Server: srv, TargetPath: target}
}

// matchRoute returns the route whose path is the longest matching prefix
// of requestPath, honoring the "/" boundary rule of §4.4 step 1.
func matchRoute(srv *config.Server, requestPath string) *config.Route {
	var best *config.Route
	for _, r := range srv.Routes {
		if !isPrefixMatch(r.Path, requestPath) {
			continue
		}
		if best == nil || len(r.Path) > len(best.Path) {
			best = r
		}
	}
	return best
}

func isPrefixMatch(routePath, requestPath string) bool {
	if !strings.HasPrefix(requestPath, routePath) {
		return false
	}
	if len(requestPath) == len(routePath) {
		return true
	}
	if routePath == "/" {
		return true
	}
	return requestPath[len(routePath)] == '/'
}

// resolveTarget strips the route prefix from requestPath and concatenates
// it to the route's root, then canonicalizes and verifies containment.
func resolveTarget(route *config.Route, requestPath string) (string, error) {
	rest := strings.TrimPrefix(requestPath, route.Path)
	rest = strings.TrimPrefix(rest, "/")

	rootAbs, err := filepath.Abs(route.Root)
	if err != nil {
		return "", err
	}
	rootCanon, err := canonicalize(rootAbs)
	if err != nil {
		return "", err
	}

	target := filepath.Join(rootAbs, rest)
	targetCanon, err := canonicalize(target)
	if err != nil {
		// Target doesn't exist yet (e.g. upload destination); canonicalize
		// what does exist (the parent) and rebuild.
		targetCanon, err = canonicalizeMissing(target)
		if err != nil {
			return "", err
		}
	}

	if targetCanon != rootCanon && !strings.HasPrefix(targetCanon, rootCanon+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return targetCanon, nil
}

// canonicalize resolves symlinks for an existing path.
func canonicalize(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

// canonicalizeMissing canonicalizes the deepest existing ancestor of path
// and rejoins the remaining (not-yet-existing) components, so a guard can
// still be applied to upload/CGI targets that don't exist yet.
func canonicalizeMissing(path string) (string, error) {
	dir, base := filepath.Split(path)
	dir = filepath.Clean(dir)
	if _, err := os.Stat(dir); err != nil {
		parent, err := canonicalizeMissing(dir)
		if err != nil {
			return "", err
		}
		return filepath.Join(parent, base), nil
	}
	canonDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(canonDir, base), nil
}

func resolveIndex(dir, index string) string {
	candidates := []string{index, "index.html"}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		p := filepath.Join(dir, c)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
