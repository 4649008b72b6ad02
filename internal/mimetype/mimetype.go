// Package mimetype provides the static extension-to-content-type lookup
// §4.5 StaticFileHandler uses, covering the types shockwave's http11
// package already names as constants plus the common web/document/image
// set §12 calls for.
package mimetype

import "strings"

var byExt = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".woff": "font/woff",
	".woff2": "font/woff2",
	".xml":  "application/xml",
	".zip":  "application/zip",
	".mp4":  "video/mp4",
	".webp": "image/webp",
}

// defaultType is returned for any extension not present in the table.
const defaultType = "application/octet-stream"

// Lookup returns the content type for filename's extension, defaulting to
// application/octet-stream per §4.5.
func Lookup(filename string) string {
	ext := extOf(filename)
	if ct, ok := byExt[ext]; ok {
		return ct
	}
	return defaultType
}

func extOf(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i:])
}
