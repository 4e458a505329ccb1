package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPassthrough(t *testing.T) {
	input := "plain sentence."
	assert.Equal(t, input, Format(input, false))

	// User text is never interpreted, even when it looks like markup
	raw := "**not bold** <script>alert(1)</script>"
	assert.Equal(t, raw, Format(raw, false))
}

func TestFormatEmpty(t *testing.T) {
	assert.Equal(t, "<p></p>", Format("", true))
	assert.Equal(t, "<p></p>", Format("\n\n  \n", true))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bold and italic",
			input:    "**bold** and *italic*",
			expected: "<p><strong>bold</strong> and <em>italic</em></p>",
		},
		{
			name:     "underscore italic",
			input:    "an _important_ point",
			expected: "<p>an <em>important</em> point</p>",
		},
		{
			name:     "nested emphasis",
			input:    "**a *b* c**",
			expected: "<p><strong>a <em>b</em> c</strong></p>",
		},
		{
			name:     "first closing pair wins",
			input:    "**one** two **three**",
			expected: "<p><strong>one</strong> two <strong>three</strong></p>",
		},
		{
			name:     "unmatched double asterisk stays literal",
			input:    "a ** b",
			expected: "<p>a ** b</p>",
		},
		{
			name:     "identifiers keep underscores",
			input:    "call snake_case_name here",
			expected: "<p>call snake_case_name here</p>",
		},
		{
			name:     "headers",
			input:    "# One\n## Two\n### Three",
			expected: "<h1>One</h1><h2>Two</h2><h3>Three</h3>",
		},
		{
			name:     "deep header is text",
			input:    "#### Four",
			expected: "<p>#### Four</p>",
		},
		{
			name:     "header without space is text",
			input:    "#hashtag",
			expected: "<p>#hashtag</p>",
		},
		{
			name:     "header followed by text",
			input:    "# Title\nbody",
			expected: "<h1>Title</h1><p>body</p>",
		},
		{
			name:     "single line break",
			input:    "one\ntwo",
			expected: "<p>one<br>two</p>",
		},
		{
			name:     "paragraphs",
			input:    "one\n\ntwo\n\n\nthree",
			expected: "<p>one</p><p>two</p><p>three</p>",
		},
		{
			name:     "windows line endings",
			input:    "a\r\nb",
			expected: "<p>a<br>b</p>",
		},
		{
			name:     "inline code is opaque",
			input:    "use `a*b*c` now",
			expected: "<p>use <code>a*b*c</code> now</p>",
		},
		{
			name:     "link",
			input:    "see [the docs](https://example.com/a_b)",
			expected: `<p>see <a href="https://example.com/a_b" target="_blank" rel="noopener noreferrer">the docs</a></p>`,
		},
		{
			name:     "link label with emphasis",
			input:    "[**x**](https://x.io)",
			expected: `<p><a href="https://x.io" target="_blank" rel="noopener noreferrer"><strong>x</strong></a></p>`,
		},
		{
			name:     "script link renders label only",
			input:    "[click](javascript:alert(1))",
			expected: "<p>click)</p>",
		},
		{
			name:     "incomplete link is literal",
			input:    "[label] (x)",
			expected: "<p>[label] (x)</p>",
		},
		{
			name:     "html is escaped",
			input:    "a < b & c > d",
			expected: "<p>a &lt; b &amp; c &gt; d</p>",
		},
		{
			name:     "single line fence stays literal",
			input:    "run ```ls -la``` now",
			expected: "<p>run ```ls -la``` now</p>",
		},
		{
			name:     "unclosed fence stays literal",
			input:    "```go\nx := 1",
			expected: "<p>```go<br>x := 1</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.input, true))
		})
	}
}

func TestFormatDashes(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a --- b", "<p>a &mdash; b</p>"},
		{"a -- b", "<p>a &mdash; b</p>"},
		{"a — b", "<p>a &mdash; b</p>"},
		{"a----b", "<p>a&mdash;-b</p>"},
		{"a-b", "<p>a-b</p>"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Format(tt.input, true), "input %q", tt.input)
	}
}

func TestFormatRules(t *testing.T) {
	// A line holding only a rule marker is a rule, never a dash
	for _, marker := range []string{"---", "***", "*****", "_____"} {
		assert.Equal(t, "<hr/>", Format(marker, true), "marker %q", marker)
	}

	assert.Equal(t, "<p>above</p><hr/><p>below</p>", Format("above\n---\nbelow", true))
	assert.Equal(t, "<p>above</p><hr/><p>below</p>", Format("above\n\n  ---  \n\nbelow", true))

	// The same run inside text is a dash
	assert.Equal(t, "<p>above &mdash; below</p>", Format("above --- below", true))
}

func TestFormatLists(t *testing.T) {
	out := Format("- a\n- b", true)
	assert.Equal(t, "<ul><li>a</li><li>b</li></ul>", out)
	assert.Equal(t, 1, strings.Count(out, "<ul>"))
	assert.Equal(t, 2, strings.Count(out, "<li>"))

	// Star bullets and whitespace between items keep one list
	assert.Equal(t, "<ul><li>a</li><li>b</li></ul>", Format("* a\n\n* b", true))

	// Other content splits the list
	assert.Equal(t,
		"<ul><li>a</li></ul><p>text</p><ul><li>b</li></ul>",
		Format("- a\ntext\n- b", true),
	)

	// Inline markup inside items
	assert.Equal(t, "<ul><li><strong>Key</strong>: value</li></ul>", Format("- **Key**: value", true))

	// Emphasis is not a bullet
	assert.Equal(t, "<p><em>note</em></p>", Format("*note*", true))
}

func TestFormatCodeBlocks(t *testing.T) {
	out := Format("```js\nconst x=1;\n```", true)
	assert.Equal(t, `<pre><code class="language-js">const x=1;</code></pre>`, out)

	// Content is opaque to every other construct
	out = Format("```\n**x** - item\n# not a header\n---\n```", true)
	assert.Equal(t, "<pre><code class=\"language-plaintext\">**x** - item\n# not a header\n---</code></pre>", out)
	assert.NotContains(t, out, "<strong>")
	assert.NotContains(t, out, "<hr/>")

	// Code is escaped for display
	out = Format("```html\n<b>hi</b>\n```", true)
	assert.Equal(t, `<pre><code class="language-html">&lt;b&gt;hi&lt;/b&gt;</code></pre>`, out)

	// Surrounding text becomes paragraphs and never gains a line break
	out = Format("Intro\n```py\nprint(1)\n```\nOutro", true)
	assert.Equal(t, `<p>Intro</p><pre><code class="language-py">print(1)</code></pre><p>Outro</p>`, out)

	// A fence in the middle of a line
	out = Format("before ```js\ncode``` after", true)
	assert.Equal(t, `<p>before</p><pre><code class="language-js">code</code></pre><p>after</p>`, out)
}

func TestParse(t *testing.T) {
	blocks := Parse("# T\n- a\n---\ntext\n```go\nx\n```")
	require.Len(t, blocks, 5)

	kinds := make([]BlockKind, 0, len(blocks))
	for _, b := range blocks {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []BlockKind{BlockHeading, BlockList, BlockRule, BlockParagraph, BlockCode}, kinds)

	assert.Equal(t, 1, blocks[0].Level)
	assert.Equal(t, []string{"T"}, blocks[0].Lines)
	assert.Equal(t, []string{"a"}, blocks[1].Lines)
	assert.Equal(t, []string{"text"}, blocks[3].Lines)
	assert.Equal(t, "go", blocks[4].Language)
	assert.Equal(t, "x", blocks[4].Code)
}

func TestParseFenceLanguage(t *testing.T) {
	blocks := Parse("```python   extra\nx\n```")
	require.Len(t, blocks, 1)
	assert.Equal(t, "python", blocks[0].Language)

	blocks = Parse("```\nx\n```")
	require.Len(t, blocks, 1)
	assert.Equal(t, "plaintext", blocks[0].Language)
}

func TestRenderInline(t *testing.T) {
	assert.Equal(t, "", RenderInline(""))
	assert.Equal(t, "<code>x</code> and <em>y</em>", RenderInline("`x` and _y_"))
	assert.Equal(t, "2 * 3 * 4", RenderInline("2 * 3 * 4"))
	assert.Equal(t, "``", RenderInline("``"))
}

func TestFormatNeverPanics(t *testing.T) {
	inputs := []string{
		"*", "**", "***x", "_", "`", "[", "[]()", "[a](", "```", "``````", "# ", "- ", "—", "\n\n\n",
		"**a *b** c*", "[a](b)[c](d)", "*a **b** c*", "\x00\xff",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Format(in, true) }, "input %q", in)
	}
}
