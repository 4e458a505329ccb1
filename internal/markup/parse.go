package markup

import (
	"strings"
)

// BlockKind identifies the type of a parsed block
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockList
	BlockRule
	BlockCode
)

// String returns a short name for the block kind
func (k BlockKind) String() string {
	switch k {
	case BlockParagraph:
		return "paragraph"
	case BlockHeading:
		return "heading"
	case BlockList:
		return "list"
	case BlockRule:
		return "rule"
	case BlockCode:
		return "code"
	default:
		return "unknown"
	}
}

// Block is one block-level element of a summary
type Block struct {
	Kind BlockKind

	// Level is the heading level (1-3) for BlockHeading
	Level int

	// Lines holds the raw paragraph lines, the list item texts, or the single
	// heading text. Inline markup in them is rendered by RenderInline.
	Lines []string

	// Language and Code are set for BlockCode. Code is opaque.
	Language string
	Code     string
}

const (
	fence           = "```"
	defaultLanguage = "plaintext"
)

// segment is either plain text or the body of a fenced code block
type segment struct {
	code bool
	lang string
	body string
}

// Parse splits text into blocks. Fenced code blocks are extracted first so
// that nothing inside them is classified or scanned for inline markup.
func Parse(text string) []Block {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var blocks []Block
	for _, seg := range splitFences(text) {
		if seg.code {
			blocks = append(blocks, Block{Kind: BlockCode, Language: seg.lang, Code: seg.body})
			continue
		}
		blocks = append(blocks, parseLines(seg.body)...)
	}
	return blocks
}

// splitFences pairs each ``` with the next one. A pair whose inner text
// holds a line break becomes a code segment; the first line of the inner
// text is the language tag. A pair without a line break stays in the text
// and is kept literal by the inline scanner.
func splitFences(text string) []segment {
	var (
		segs    []segment
		pending strings.Builder
		rest    = text
	)

	for {
		open := strings.Index(rest, fence)
		if open < 0 {
			break
		}
		closeRel := strings.Index(rest[open+len(fence):], fence)
		if closeRel < 0 {
			break
		}
		closeAt := open + len(fence) + closeRel
		inner := rest[open+len(fence) : closeAt]

		nl := strings.IndexByte(inner, '\n')
		if nl < 0 {
			pending.WriteString(rest[:closeAt+len(fence)])
			rest = rest[closeAt+len(fence):]
			continue
		}

		pending.WriteString(rest[:open])
		if pending.Len() > 0 {
			segs = append(segs, segment{body: pending.String()})
			pending.Reset()
		}
		segs = append(segs, segment{
			code: true,
			lang: fenceLanguage(inner[:nl]),
			body: strings.TrimSuffix(inner[nl+1:], "\n"),
		})
		// Text following a code block on the same line starts a new paragraph
		rest = strings.TrimLeft(rest[closeAt+len(fence):], " \t")
	}

	pending.WriteString(rest)
	if pending.Len() > 0 {
		segs = append(segs, segment{body: pending.String()})
	}
	return segs
}

func fenceLanguage(tag string) string {
	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return defaultLanguage
	}
	return fields[0]
}

// parseLines classifies each line and groups them into blocks.
// Rules are decided here, before any inline scanning, so a lone "---" line
// is always a rule and never a dash.
func parseLines(text string) []Block {
	var (
		blocks []Block
		para   []string
		items  []string
	)

	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, Block{Kind: BlockParagraph, Lines: para})
			para = nil
		}
	}
	flushList := func() {
		if len(items) > 0 {
			blocks = append(blocks, Block{Kind: BlockList, Lines: items})
			items = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			// Blank lines end a paragraph but not a list: items separated
			// only by whitespace belong to the same list.
			flushPara()
			continue
		}

		if isRule(trimmed) {
			flushPara()
			flushList()
			blocks = append(blocks, Block{Kind: BlockRule})
			continue
		}

		if level, heading, ok := parseHeading(line); ok {
			flushPara()
			flushList()
			blocks = append(blocks, Block{Kind: BlockHeading, Level: level, Lines: []string{heading}})
			continue
		}

		if item, ok := parseListItem(line); ok {
			flushPara()
			items = append(items, item)
			continue
		}

		flushList()
		para = append(para, strings.TrimRight(line, " \t"))
	}

	flushPara()
	flushList()
	return blocks
}

func isRule(line string) bool {
	switch line {
	case "***", "---", "*****", "_____":
		return true
	}
	return false
}

// parseHeading recognizes "# ", "## " and "### " at the start of a line
func parseHeading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 3 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimSpace(line[level+1:]), true
}

// parseListItem recognizes "- item" and "* item". Leading indentation is
// accepted; nested items are flattened into the enclosing list.
func parseListItem(line string) (string, bool) {
	line = strings.TrimLeft(line, " \t")
	if len(line) < 2 || line[1] != ' ' || (line[0] != '-' && line[0] != '*') {
		return "", false
	}
	return strings.TrimSpace(line[2:]), true
}
