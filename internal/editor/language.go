package editor

import (
	"path"
	"strings"
)

var languages = map[string]string{
	".html": "html",
	".css":  "css",
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".json": "json",
	".md":   "markdown",
	".xml":  "xml",
	".svg":  "xml",
	".txt":  "plaintext",
}

// LanguageFor returns the syntax mode used to display a file.
func LanguageFor(name string) string {
	if lang, ok := languages[strings.ToLower(path.Ext(name))]; ok {
		return lang
	}
	return "plaintext"
}
