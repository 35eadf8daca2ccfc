package tgui

import (
	"html"
	"strings"
)

// H is HTML already safe for ParseMode "HTML".
type H string

func (h H) String() string { return string(h) }

// Esc escapes plain text.
func Esc(s string) H { return H(html.EscapeString(s)) }

func tag(name string, inner H) H { return H("<" + name + ">" + string(inner) + "</" + name + ">") }

func B(s string) H { return tag("b", Esc(s)) }
func I(s string) H { return tag("i", Esc(s)) }

// Link renders an anchor. An empty url degrades to escaped text.
func Link(text, url string) H {
	if strings.TrimSpace(url) == "" {
		return Esc(text)
	}
	return H(`<a href="` + html.EscapeString(url) + `">` + html.EscapeString(text) + `</a>`)
}

// Join concatenates parts with sep, which is escaped.
func Join(sep string, parts ...H) H {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			ss = append(ss, string(p))
		}
	}
	return H(strings.Join(ss, html.EscapeString(sep)))
}
