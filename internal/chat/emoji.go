package chat

import (
	"html"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/tOgg1/discuss/internal/models"
)

const emojiMatchTimeout = 250 * time.Millisecond

type emojiRule struct {
	pattern     *regexp2.Regexp
	replacement string
}

// emojiTable rewrites emoji shortcodes. Incoming bodies get markup
// substitutions; outgoing bodies get unicode replacements. Rules apply in
// shortcode order.
type emojiTable struct {
	display []emojiRule
	unicode []emojiRule
}

func newEmojiTable(codes []models.Shortcode) *emojiTable {
	t := &emojiTable{}
	seen := make(map[string]bool)
	addDisplay := func(key, substitution string) {
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		re, err := regexp2.Compile(`(^|\s|<[a-z]*>)(`+regexp2.Escape(key)+`)(?=\s|$|</[a-z]*>)`, regexp2.None)
		if err != nil {
			return
		}
		re.MatchTimeout = emojiMatchTimeout
		t.display = append(t.display, emojiRule{pattern: re, replacement: substitution})
	}

	for _, code := range codes {
		source := html.EscapeString(code.Source)
		addDisplay(source, code.Substitution)
		if code.UnicodeSource == "" {
			continue
		}
		addDisplay(html.EscapeString(string(code.UnicodeSource)), code.Substitution)

		re, err := regexp2.Compile(`(\s|^)(`+regexp2.Escape(source)+`)(?=\s|$)`, regexp2.None)
		if err != nil {
			continue
		}
		re.MatchTimeout = emojiMatchTimeout
		t.unicode = append(t.unicode, emojiRule{pattern: re, replacement: string(code.UnicodeSource)})
	}
	return t
}

// substitute renders shortcodes of an incoming body as emoji markup. The
// delimiter preceding a shortcode is kept.
func (t *emojiTable) substitute(body string) string {
	for _, rule := range t.display {
		span := ` <span class="o_mail_emoji">` + rule.replacement + `</span> `
		body = replace(rule.pattern, body, func(prefix string) string { return prefix + span })
	}
	return body
}

// toUnicode replaces shortcodes of an outgoing body with their unicode
// form.
func (t *emojiTable) toUnicode(body string) string {
	for _, rule := range t.unicode {
		body = replace(rule.pattern, body, func(prefix string) string { return prefix + rule.replacement })
	}
	return body
}

func replace(re *regexp2.Regexp, input string, render func(prefix string) string) string {
	out, err := re.ReplaceFunc(input, func(match regexp2.Match) string {
		return render(match.GroupByNumber(1).String())
	}, -1, -1)
	if err != nil {
		return input
	}
	return out
}
