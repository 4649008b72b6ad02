// Package handlers implements the handle(request, response) variants of
// §4.5: one function per tagged Kind the router selects, except KindCGI,
// which the reactor launches through cgiproc.
package handlers

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/watt-labs/webserv/internal/config"
	"github.com/watt-labs/webserv/internal/htmlgen"
	"github.com/watt-labs/webserv/internal/httpparse"
	"github.com/watt-labs/webserv/internal/mimetype"
	"github.com/watt-labs/webserv/internal/respbuilder"
	"github.com/watt-labs/webserv/internal/sanitize"
	"github.com/watt-labs/webserv/internal/session"
)

const httpDateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// StaticFile implements §4.5 StaticFileHandler.
func StaticFile(target string, resp *respbuilder.Response) error {
	f, err := os.Open(target)
	if err != nil {
		return Error(404, nil, resp)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return Error(500, nil, resp)
	}
	resp.Status = 200
	resp.Headers.Set("Content-Type", mimetype.Lookup(target))
	resp.Headers.Set("Last-Modified", info.ModTime().UTC().Format(httpDateFormat))
	resp.SetBodyFile(f, info.Size())
	return nil
}

// Directory implements §4.5 DirectoryHandler.
func Directory(requestPath, target string, resp *respbuilder.Response) error {
	entries, err := os.ReadDir(target)
	if err != nil {
		return Error(500, nil, resp)
	}
	listed := make([]htmlgen.Entry, 0, len(entries))
	for _, e := range entries {
		listed = append(listed, htmlgen.Entry{Name: e.Name(), IsDir: e.IsDir()})
	}
	sort.Slice(listed, func(i, j int) bool {
		if listed[i].IsDir != listed[j].IsDir {
			return listed[i].IsDir
		}
		return strings.ToLower(listed[i].Name) < strings.ToLower(listed[j].Name)
	})

	resp.Status = 200
	resp.Headers.Set("Content-Type", "text/html")
	resp.SetBody(htmlgen.Directory(requestPath, listed))
	return nil
}

// Upload implements §4.5 UploadHandler: multipart file parts are moved
// into the route root (sanitized and containment-checked); a non-
// multipart body is written directly to the already-resolved target.
func Upload(req *httpparse.Request, route *config.Route, target string, resp *respbuilder.Response) error {
	if req.IsMultipart() {
		rootAbs, err := filepath.Abs(route.Root)
		if err != nil {
			return Error(500, nil, resp)
		}
		rootCanon, err := filepath.EvalSymlinks(rootAbs)
		if err != nil {
			return Error(500, nil, resp)
		}

		for _, part := range req.Parts {
			if !part.IsFile() {
				continue
			}
			safe := sanitize.Filename(part.Filename)
			dest := filepath.Join(rootAbs, safe)

			destDir := filepath.Dir(dest)
			destDirCanon, err := filepath.EvalSymlinks(destDir)
			if err != nil || (destDirCanon != rootCanon && !strings.HasPrefix(destDirCanon, rootCanon+string(filepath.Separator))) {
				return Error(403, nil, resp)
			}

			if err := moveFile(part.TempPath, dest); err != nil {
				return Error(500, nil, resp)
			}
		}
		resp.Status = 201
		return nil
	}

	if req.BodyFile != nil {
		if err := moveFile(req.BodyPath, target); err != nil {
			return Error(500, nil, resp)
		}
	} else if err := os.WriteFile(target, req.BodyBytes, 0o644); err != nil {
		return Error(500, nil, resp)
	}
	resp.Status = 201
	return nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return err
	}
	os.Remove(src)
	return nil
}

// Delete implements §4.5 DeleteHandler.
func Delete(target string, resp *respbuilder.Response) error {
	info, err := os.Stat(target)
	if err != nil {
		return Error(404, nil, resp)
	}
	if info.IsDir() {
		return Error(403, nil, resp)
	}
	if err := os.Remove(target); err != nil {
		if os.IsPermission(err) {
			return Error(403, nil, resp)
		}
		return Error(500, nil, resp)
	}
	resp.Status = 204
	return nil
}

// Redirect implements §4.5 RedirectHandler.
func Redirect(route *config.Route, resp *respbuilder.Response) error {
	resp.Status = route.RedirectStatusCode
	resp.Headers.Set("Location", route.RedirectTo)
	return nil
}

// Error implements §4.5 ErrorHandler. srv may be nil (no configured error
// pages available, e.g. before virtual-host selection).
func Error(status int, srv *config.Server, resp *respbuilder.Response) error {
	resp.Status = status
	if srv != nil {
		if path, ok := srv.ErrorPages[status]; ok {
			if data, err := os.ReadFile(path); err == nil {
				resp.Headers.Set("Content-Type", mimetype.Lookup(path))
				resp.SetBody(data)
				return nil
			}
		}
	}
	resp.Headers.Set("Content-Type", "text/html")
	resp.SetBody(htmlgen.ErrorPage(status, statusReason(status)))
	return nil
}

func statusReason(code int) string {
	switch code {
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 408:
		return "Request Timeout"
	case 413:
		return "Payload Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	default:
		return "Error"
	}
}

// Session implements §4.5 SessionHandler.
func Session(store *session.Store, req *httpparse.Request, resp *respbuilder.Response) error {
	if id, ok := req.Headers.Cookies["SESSIONID"]; ok {
		if sess, ok := store.Get(id); ok {
			sess.Views++
			resp.Status = 200
			resp.SetBody([]byte("views: " + strconv.Itoa(sess.Views)))
			return nil
		}
	}
	sess := store.Create()
	resp.Status = 200
	resp.Headers.Add("Set-Cookie", "SESSIONID="+sess.ID+"; Path=/; HttpOnly")
	resp.SetBody([]byte("views: " + strconv.Itoa(sess.Views)))
	return nil
}
