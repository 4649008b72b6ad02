package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "webserv.conf")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, `{
		"name": "webserv",
		"version": "1.0",
		"servers": [{
			"serverName": "example.com",
			"host": "127.0.0.1",
			"ports": [8080],
			"maxBodySize": 1048576,
			"routes": [{
				"path": "/",
				"root": "./www",
				"methods": ["GET"]
			}]
		}]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Servers) != 1 {
		t.Fatalf("servers = %d, want 1", len(cfg.Servers))
	}
	if len(cfg.Groups["127.0.0.1:8080"]) != 1 {
		t.Errorf("expected one server in the 127.0.0.1:8080 group")
	}
}

func TestLoadRejectsPortOutOfRange(t *testing.T) {
	path := writeTempConfig(t, `{
		"name": "webserv", "version": "1.0",
		"servers": [{
			"host": "127.0.0.1", "ports": [80], "maxBodySize": 1024,
			"routes": [{"path": "/", "root": "./www", "methods": ["GET"]}]
		}]
	}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestLoadRejectsNonWwwRoot(t *testing.T) {
	path := writeTempConfig(t, `{
		"name": "webserv", "version": "1.0",
		"servers": [{
			"host": "127.0.0.1", "ports": [8080], "maxBodySize": 1024,
			"routes": [{"path": "/", "root": "./etc", "methods": ["GET"]}]
		}]
	}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-./www root")
	}
}

func TestLoadRejectsCGIRootOutsideScripts(t *testing.T) {
	path := writeTempConfig(t, `{
		"name": "webserv", "version": "1.0",
		"servers": [{
			"host": "127.0.0.1", "ports": [8080], "maxBodySize": 1024,
			"routes": [{"path": "/cgi-bin", "root": "./www", "cgiExtension": ".py", "methods": ["GET"]}]
		}]
	}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for cgi route root not under ./scripts")
	}
}

func TestLoadRejectsDuplicateRoutePath(t *testing.T) {
	path := writeTempConfig(t, `{
		"name": "webserv", "version": "1.0",
		"servers": [{
			"host": "127.0.0.1", "ports": [8080], "maxBodySize": 1024,
			"routes": [
				{"path": "/", "root": "./www", "methods": ["GET"]},
				{"path": "/", "root": "./www", "methods": ["POST"]}
			]
		}]
	}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for duplicate route path")
	}
}

func TestLoadRejectsDuplicateTriple(t *testing.T) {
	path := writeTempConfig(t, `{
		"name": "webserv", "version": "1.0",
		"servers": [
			{
				"serverName": "a", "host": "127.0.0.1", "ports": [8080], "maxBodySize": 1024,
				"routes": [{"path": "/", "root": "./www", "methods": ["GET"]}]
			},
			{
				"serverName": "a", "host": "127.0.0.1", "ports": [8080], "maxBodySize": 1024,
				"routes": [{"path": "/x", "root": "./www", "methods": ["GET"]}]
			}
		]
	}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for duplicate (host,port,serverName) triple")
	}
}

func TestLoadRedirectRouteDefaultsTo301(t *testing.T) {
	path := writeTempConfig(t, `{
		"name": "webserv", "version": "1.0",
		"servers": [{
			"host": "127.0.0.1", "ports": [8080], "maxBodySize": 1024,
			"routes": [{"path": "/old", "redirectTo": "/new"}]
		}]
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := cfg.Servers[0].Routes[0]
	if !r.IsRedirect || r.RedirectStatusCode != 301 {
		t.Errorf("route = %+v, want redirect 301", r)
	}
}

func TestLoadRejectsInvalidRedirectStatus(t *testing.T) {
	path := writeTempConfig(t, `{
		"name": "webserv", "version": "1.0",
		"servers": [{
			"host": "127.0.0.1", "ports": [8080], "maxBodySize": 1024,
			"routes": [{"path": "/old", "redirectTo": "/new", "redirectStatusCode": 307}]
		}]
	}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported redirect status code")
	}
}
