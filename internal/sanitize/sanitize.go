// Package sanitize implements the upload filename-sanitization rule §4.5
// UploadHandler specifies.
package sanitize

import (
	"regexp"
	"strings"
)

var dirComponent = regexp.MustCompile(`.*[/\\]`)
var unsafeChar = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Filename strips any directory component, replaces every character
// outside [A-Za-z0-9._-] with '_', and prefixes a leading '.' with '_' so
// the result can never resolve to a hidden file or a path segment.
func Filename(name string) string {
	name = dirComponent.ReplaceAllString(name, "")
	name = unsafeChar.ReplaceAllString(name, "_")
	if strings.HasPrefix(name, ".") {
		name = "_" + name
	}
	return name
}
