// Package web holds the server-rendered pages.
package web

import (
	"embed"
	"html/template"
	"strings"
	"unicode"
)

//go:embed templates/*.tmpl
var files embed.FS

var funcs = template.FuncMap{
	"join":  strings.Join,
	"title": title,
}

// Templates parses every page. Pages are executed by their define name.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(files, "templates/*.tmpl")
}

// title upper-cases the first letter of every word.
func title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
