package markup

import (
	"strings"
)

const mdash = "&mdash;"

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#39;")
)

// RenderInline renders the inline markup of a single line: **strong**,
// *em* and _em_, `code`, [label](url) links and dash runs. Unmatched
// markers are emitted literally.
func RenderInline(s string) string {
	var b strings.Builder
	renderInline(&b, s, true)
	return b.String()
}

func renderInline(b *strings.Builder, s string, links bool) {
	for i := 0; i < len(s); {
		rest := s[i:]

		switch {
		case strings.HasPrefix(rest, fence):
			// Single-line fenced spans stay literal, fences included
			if end := strings.Index(rest[len(fence):], fence); end >= 0 {
				span := rest[:len(fence)+end+len(fence)]
				b.WriteString(textEscaper.Replace(span))
				i += len(span)
				continue
			}
			b.WriteString(fence)
			i += len(fence)

		case rest[0] == '`':
			if end := strings.IndexByte(rest[1:], '`'); end > 0 {
				b.WriteString("<code>")
				b.WriteString(textEscaper.Replace(rest[1 : 1+end]))
				b.WriteString("</code>")
				i += end + 2
				continue
			}
			b.WriteByte('`')
			i++

		case links && rest[0] == '[':
			if label, href, n, ok := parseLink(rest); ok {
				writeLink(b, label, href)
				i += n
				continue
			}
			b.WriteByte('[')
			i++

		case strings.HasPrefix(rest, "**"):
			// Non-greedy: the first closing pair wins
			if end := strings.Index(rest[2:], "**"); end > 0 {
				b.WriteString("<strong>")
				renderInline(b, rest[2:2+end], links)
				b.WriteString("</strong>")
				i += end + 4
				continue
			}
			b.WriteString("**")
			i += 2

		case rest[0] == '*' || rest[0] == '_':
			if end, ok := closingEmphasis(s, i); ok {
				b.WriteString("<em>")
				renderInline(b, s[i+1:end], links)
				b.WriteString("</em>")
				i = end + 1
				continue
			}
			b.WriteByte(rest[0])
			i++

		// Three-hyphen runs are matched before two-hyphen runs
		case strings.HasPrefix(rest, "---"):
			b.WriteString(mdash)
			i += 3
		case strings.HasPrefix(rest, "--"):
			b.WriteString(mdash)
			i += 2
		case strings.HasPrefix(rest, "—"):
			b.WriteString(mdash)
			i += len("—")

		case rest[0] == '&':
			b.WriteString("&amp;")
			i++
		case rest[0] == '<':
			b.WriteString("&lt;")
			i++
		case rest[0] == '>':
			b.WriteString("&gt;")
			i++

		default:
			b.WriteByte(rest[0])
			i++
		}
	}
}

// closingEmphasis finds the marker closing the emphasis opened at s[i].
// The opener must not be followed by whitespace and the closer must not be
// preceded by it. Underscores only open and close at word boundaries, so
// identifiers like snake_case_name stay intact. A '*' that belongs to a
// "**" pair is skipped.
func closingEmphasis(s string, i int) (int, bool) {
	m := s[i]
	if i+1 >= len(s) || isSpace(s[i+1]) || s[i+1] == m {
		return 0, false
	}
	if m == '_' && i > 0 && isWordByte(s[i-1]) {
		return 0, false
	}

	for j := i + 2; j < len(s); j++ {
		if s[j] != m {
			continue
		}
		if m == '*' && j+1 < len(s) && s[j+1] == '*' {
			j++
			continue
		}
		if isSpace(s[j-1]) {
			continue
		}
		if m == '_' && j+1 < len(s) && isWordByte(s[j+1]) {
			continue
		}
		return j, true
	}
	return 0, false
}

// parseLink parses "[label](url)" at the start of s and returns the number
// of bytes consumed
func parseLink(s string) (label, href string, n int, ok bool) {
	closeLabel := strings.IndexByte(s, ']')
	if closeLabel < 2 || closeLabel+1 >= len(s) || s[closeLabel+1] != '(' {
		return "", "", 0, false
	}
	closeHref := strings.IndexByte(s[closeLabel+2:], ')')
	if closeHref < 1 {
		return "", "", 0, false
	}
	label = s[1:closeLabel]
	href = s[closeLabel+2 : closeLabel+2+closeHref]
	return label, href, closeLabel + 2 + closeHref + 1, true
}

// writeLink renders an anchor that opens in a new browsing context without
// leaking the opener or the referrer. Script-capable schemes render the
// label only.
func writeLink(b *strings.Builder, label, href string) {
	if unsafeScheme(href) {
		renderInline(b, label, false)
		return
	}
	b.WriteString(`<a href="`)
	b.WriteString(attrEscaper.Replace(strings.TrimSpace(href)))
	b.WriteString(`" target="_blank" rel="noopener noreferrer">`)
	renderInline(b, label, false)
	b.WriteString("</a>")
}

func unsafeScheme(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	for _, scheme := range []string{"javascript:", "vbscript:", "data:"} {
		if strings.HasPrefix(h, scheme) {
			return true
		}
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n'
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
