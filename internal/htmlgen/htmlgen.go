// Package htmlgen builds the minimal HTML pages §4.5 DirectoryHandler and
// ErrorHandler emit. No templating engine: a single repeated row shape
// doesn't warrant one, and entry names are escaped with the standard
// library's html.EscapeString.
package htmlgen

import (
	"html"
	"strconv"
	"strings"
)

// Entry is one directory entry to list.
type Entry struct {
	Name  string
	IsDir bool
}

// Directory renders a directory listing page for requestPath, with a
// "../" link unless requestPath is "/".
func Directory(requestPath string, entries []Entry) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Index of ")
	b.WriteString(html.EscapeString(requestPath))
	b.WriteString("</title></head><body>\n<h1>Index of ")
	b.WriteString(html.EscapeString(requestPath))
	b.WriteString("</h1>\n<ul>\n")

	if requestPath != "/" {
		b.WriteString("<li><a href=\"../\">../</a></li>\n")
	}
	for _, e := range entries {
		name := e.Name
		href := html.EscapeString(name)
		display := html.EscapeString(name)
		if e.IsDir {
			href += "/"
			display += "/"
		}
		b.WriteString("<li><a href=\"")
		b.WriteString(href)
		b.WriteString("\">")
		b.WriteString(display)
		b.WriteString("</a></li>\n")
	}
	b.WriteString("</ul>\n</body></html>\n")
	return []byte(b.String())
}

// ErrorPage renders a default error page for statusCode/statusText when no
// configured error-page file exists for it.
func ErrorPage(statusCode int, statusText string) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(statusText))
	b.WriteString("</title></head><body>\n<h1>")
	b.WriteString(strconv.Itoa(statusCode))
	b.WriteString(" ")
	b.WriteString(html.EscapeString(statusText))
	b.WriteString("</h1>\n</body></html>\n")
	return []byte(b.String())
}
