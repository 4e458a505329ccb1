// Package markup renders generated summary text as HTML for the chat view.
// It parses fenced code blocks, headers, rules, bullet lists and paragraphs
// at block level, then scans each line for emphasis, inline code, links and
// dash runs. Rendering never fails: anything that does not form a complete
// construct is emitted as escaped literal text.
package markup
