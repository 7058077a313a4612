// Package htmltext transforms HTML message bodies: link-ification, inline
// previews and tag stripping.
package htmltext

import (
	"html"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var urlPattern = regexp.MustCompile(`\b(?:https?://|www\.)[^\s<>"]+[^\s<>".,;:!?)\]]`)

var blockElements = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true,
	atom.Ol: true, atom.Tr: true, atom.Table: true, atom.Blockquote: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true,
	atom.H6: true, atom.Pre: true,
}

// AddLinks wraps bare URLs found in text nodes in anchors. Text already
// inside an anchor is left untouched.
func AddLinks(body string) string {
	if !strings.Contains(body, "http") && !strings.Contains(body, "www.") {
		return body
	}
	var out strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(body))
	anchorDepth := 0
	for {
		tt := z.Next()
		switch tt {
		case nethtml.ErrorToken:
			if z.Err() == io.EOF {
				return out.String()
			}
			return body
		case nethtml.TextToken:
			raw := string(z.Raw())
			if anchorDepth > 0 {
				out.WriteString(raw)
				continue
			}
			out.WriteString(linkify(raw))
		case nethtml.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.A {
				anchorDepth++
			}
			out.Write(z.Raw())
		case nethtml.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.A && anchorDepth > 0 {
				anchorDepth--
			}
			out.Write(z.Raw())
		default:
			out.Write(z.Raw())
		}
	}
}

func linkify(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(match string) string {
		href := html.UnescapeString(match)
		if strings.HasPrefix(href, "www.") {
			href = "http://" + href
		}
		return `<a href="` + html.EscapeString(href) + `" target="_blank" rel="noreferrer noopener">` + match + `</a>`
	})
}

// StripHTML returns the text content of body.
func StripHTML(body string) string {
	return strings.TrimSpace(textContent(body, false))
}

// Inline flattens body to a single line: block boundaries become spaces
// and whitespace runs collapse.
func Inline(body string) string {
	return strings.Join(strings.Fields(textContent(body, true)), " ")
}

// Truncate caps s to max runes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func textContent(body string, breakBlocks bool) string {
	var out strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(body))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case nethtml.ErrorToken:
			return out.String()
		case nethtml.TextToken:
			if skip == 0 {
				out.Write(z.Text())
			}
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				if tt == nethtml.StartTagToken {
					skip++
				}
				continue
			}
			if breakBlocks && blockElements[a] {
				out.WriteByte(' ')
			}
		case nethtml.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
				continue
			}
			if breakBlocks && blockElements[a] {
				out.WriteByte(' ')
			}
		}
	}
}
