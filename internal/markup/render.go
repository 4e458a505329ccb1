package markup

import (
	"strconv"
	"strings"
)

// Format renders a chat entry. Only generated summaries are rendered as
// markup: when render is false (user input, error text) the text is
// returned unchanged so it is never interpreted as HTML.
func Format(text string, render bool) string {
	if !render {
		return text
	}
	return Render(Parse(text))
}

// Render converts parsed blocks to HTML. Every block is emitted as a closed
// element; an empty block list yields an empty paragraph.
func Render(blocks []Block) string {
	if len(blocks) == 0 {
		return "<p></p>"
	}

	var b strings.Builder
	for _, blk := range blocks {
		switch blk.Kind {
		case BlockParagraph:
			b.WriteString("<p>")
			for i, line := range blk.Lines {
				if i > 0 {
					b.WriteString("<br>")
				}
				renderInline(&b, line, true)
			}
			b.WriteString("</p>")

		case BlockHeading:
			tag := "h" + strconv.Itoa(blk.Level)
			b.WriteString("<" + tag + ">")
			if len(blk.Lines) > 0 {
				renderInline(&b, blk.Lines[0], true)
			}
			b.WriteString("</" + tag + ">")

		case BlockList:
			b.WriteString("<ul>")
			for _, item := range blk.Lines {
				b.WriteString("<li>")
				renderInline(&b, item, true)
				b.WriteString("</li>")
			}
			b.WriteString("</ul>")

		case BlockRule:
			b.WriteString("<hr/>")

		case BlockCode:
			lang := blk.Language
			if lang == "" {
				lang = defaultLanguage
			}
			b.WriteString(`<pre><code class="language-`)
			b.WriteString(attrEscaper.Replace(lang))
			b.WriteString(`">`)
			b.WriteString(textEscaper.Replace(blk.Code))
			b.WriteString("</code></pre>")
		}
	}
	return b.String()
}
