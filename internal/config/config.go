// Package config loads, validates, and freezes the server's declarative
// JSON configuration, per §6 and §10.3. Decoding uses goccy/go-json, the
// same drop-in replacement for encoding/json the teacher reaches for on
// its hot request/response path.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Raw mirrors the JSON document's shape exactly; Load unmarshals into
// this, then validateAndFreeze derives the frozen runtime structures.
type Raw struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Servers []RawServer `json:"servers"`
}

type RawServer struct {
	ServerName    string            `json:"serverName"`
	Host          string            `json:"host"`
	Ports         []int             `json:"ports"`
	MaxBodySize   int64             `json:"maxBodySize"`
	DefaultServer bool              `json:"defaultServer"`
	ErrorPages    map[string]string `json:"errorPages"`
	Routes        []RawRoute        `json:"routes"`
}

type RawRoute struct {
	Path               string   `json:"path"`
	RedirectTo         string   `json:"redirectTo"`
	RedirectStatusCode  int     `json:"redirectStatusCode"`
	Root               string   `json:"root"`
	Methods            []string `json:"methods"`
	Index              string   `json:"index"`
	DirectoryListing   bool     `json:"directoryListing"`
	CGIExtension       string   `json:"cgiExtension"`
}

// Load reads and unmarshals the config file at path, then validates and
// freezes it. Returns the first validation violation encountered, if any.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return validateAndFreeze(&raw)
}

// Config is the frozen, validated runtime configuration. Nothing mutates
// it after Load returns; the event loop reads it concurrently with
// nothing to synchronize since it's single-threaded besides.
type Config struct {
	Name    string
	Version string
	Servers []*Server

	// Groups maps a (host, port) bind target to the virtual hosts sharing
	// it, built once at freeze time for the event loop's listener setup.
	Groups map[string][]*Server
}

type Server struct {
	ServerName    string
	Host          string
	Ports         []int
	MaxBodySize   int64
	DefaultServer bool
	ErrorPages    map[int]string
	Routes        []*Route
}

type Route struct {
	Path string

	IsRedirect         bool
	RedirectTo         string
	RedirectStatusCode int

	Root             string
	Methods          map[string]bool
	Index            string
	DirectoryListing bool
	CGIExtension     string
}

func validateAndFreeze(raw *Raw) (*Config, error) {
	if len(raw.Servers) < 1 || len(raw.Servers) > 10 {
		return nil, fmt.Errorf("config: servers count must be 1-10, got %d", len(raw.Servers))
	}

	cfg := &Config{
		Name:    raw.Name,
		Version: raw.Version,
		Groups:  make(map[string][]*Server),
	}

	seenTriples := make(map[string]bool)

	for si, rs := range raw.Servers {
		if rs.Host == "" {
			return nil, fmt.Errorf("config: server[%d]: missing host", si)
		}
		if ip := net.ParseIP(rs.Host); ip == nil || ip.To4() == nil || strings.Contains(rs.Host, ":") {
			return nil, fmt.Errorf("config: server[%d]: host %q is not a dotted-quad IPv4 address", si, rs.Host)
		}
		if len(rs.Ports) == 0 {
			return nil, fmt.Errorf("config: server[%d]: at least one port required", si)
		}
		if rs.MaxBodySize <= 0 {
			return nil, fmt.Errorf("config: server[%d]: maxBodySize must be positive", si)
		}

		seenPorts := make(map[int]bool)
		for _, p := range rs.Ports {
			if p < 1024 || p > 65535 {
				return nil, fmt.Errorf("config: server[%d]: port %d out of range 1024-65535", si, p)
			}
			if seenPorts[p] {
				return nil, fmt.Errorf("config: server[%d]: duplicate port %d", si, p)
			}
			seenPorts[p] = true
		}

		srv := &Server{
			ServerName:    rs.ServerName,
			Host:          rs.Host,
			Ports:         rs.Ports,
			MaxBodySize:   rs.MaxBodySize,
			DefaultServer: rs.DefaultServer,
			ErrorPages:    make(map[int]string),
		}
		for codeStr, path := range rs.ErrorPages {
			code, err := strconv.Atoi(codeStr)
			if err != nil {
				return nil, fmt.Errorf("config: server[%d]: invalid error page status %q", si, codeStr)
			}
			srv.ErrorPages[code] = path
		}

		if len(rs.Routes) < 1 {
			return nil, fmt.Errorf("config: server[%d]: at least one route required", si)
		}
		seenPaths := make(map[string]bool)
		for ri, rr := range rs.Routes {
			route, err := validateRoute(si, ri, rr)
			if err != nil {
				return nil, err
			}
			if seenPaths[route.Path] {
				return nil, fmt.Errorf("config: server[%d]: duplicate route path %q", si, route.Path)
			}
			seenPaths[route.Path] = true
			srv.Routes = append(srv.Routes, route)
		}

		for _, p := range rs.Ports {
			triple := fmt.Sprintf("%s|%d|%s", rs.Host, p, rs.ServerName)
			if seenTriples[triple] {
				return nil, fmt.Errorf("config: duplicate (host,port,serverName) triple: %s", triple)
			}
			seenTriples[triple] = true

			key := fmt.Sprintf("%s:%d", rs.Host, p)
			cfg.Groups[key] = append(cfg.Groups[key], srv)
		}

		cfg.Servers = append(cfg.Servers, srv)
	}

	return cfg, nil
}

func validateRoute(si, ri int, rr RawRoute) (*Route, error) {
	if !strings.HasPrefix(rr.Path, "/") {
		return nil, fmt.Errorf("config: server[%d] route[%d]: path must start with /", si, ri)
	}

	if rr.RedirectTo != "" {
		code := rr.RedirectStatusCode
		if code == 0 {
			code = 301
		}
		if code != 301 && code != 302 {
			return nil, fmt.Errorf("config: server[%d] route[%d]: redirectStatusCode must be 301 or 302", si, ri)
		}
		return &Route{
			Path:               rr.Path,
			IsRedirect:         true,
			RedirectTo:         rr.RedirectTo,
			RedirectStatusCode: code,
		}, nil
	}

	if rr.CGIExtension != "" {
		if !strings.HasPrefix(rr.Root, "./scripts") {
			return nil, fmt.Errorf("config: server[%d] route[%d]: cgi route root must start with ./scripts", si, ri)
		}
	} else if !strings.HasPrefix(rr.Root, "./www") {
		return nil, fmt.Errorf("config: server[%d] route[%d]: root must start with ./www", si, ri)
	}

	methods := make(map[string]bool)
	for _, m := range rr.Methods {
		if m != "GET" && m != "POST" && m != "DELETE" {
			return nil, fmt.Errorf("config: server[%d] route[%d]: unsupported method %q", si, ri, m)
		}
		methods[m] = true
	}

	return &Route{
		Path:             rr.Path,
		Root:             rr.Root,
		Methods:          methods,
		Index:            rr.Index,
		DirectoryListing: rr.DirectoryListing,
		CGIExtension:     rr.CGIExtension,
	}, nil
}
