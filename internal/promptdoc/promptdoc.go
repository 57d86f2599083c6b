// Package promptdoc parses and rebuilds the textual layout of a prompt file:
//
//	<body>
//
//	# Challenger Focus
//
//	<focus>
//
//	User input:
//	{{input}}
//
// The focus section is optional and only ever present on challengers.
package promptdoc

import (
	"strings"
)

const (
	// FocusHeader opens the challenger-only amendment.
	FocusHeader = "# Challenger Focus"
	// InputLabel introduces the trailing placeholder block.
	InputLabel = "User input:"

	PlaceholderDouble = "{{input}}"
	PlaceholderSingle = "{input}"

	// CleanedAnchor closes a rendered prompt that had no placeholder.
	CleanedAnchor = "Cleaned:"
)

// Placeholders lists the recognized spellings in lookup order.
var Placeholders = []string{PlaceholderDouble, PlaceholderSingle}

// Document is a prompt split into its durable and mutable parts.
type Document struct {
	Body        string
	Focus       string
	Placeholder string

	// Tail is whatever followed the placeholder line, kept verbatim.
	Tail string

	// HasInputBlock is false when Parse fell back to the canonical block.
	HasInputBlock bool
}

// Parse splits prompt text. It never fails: text without an input block gets
// the canonical {{input}} placeholder.
//
// The focus header is located first. The input block is the last one at a
// line start, so an example block quoted inside the body stays in the body.
func Parse(text string) Document {
	text = normalize(text)
	doc := Document{Placeholder: PlaceholderDouble}

	padded := "\n\n" + text + "\n"
	marker := "\n\n" + FocusHeader + "\n"
	at := strings.Index(padded, marker)
	if at < 0 {
		doc.Body = strings.TrimSpace(doc.takeInputBlock(text))
		return doc
	}

	body := padded[2:max(at, 2)]
	rest := padded[at+len(marker):]
	if _, _, _, ok := lastInputBlock(rest); ok {
		doc.Focus = doc.takeInputBlock(rest)
	} else {
		doc.Focus = rest
		body = doc.takeInputBlock(body)
	}
	doc.Body = strings.TrimSpace(body)
	doc.Focus = strings.TrimSpace(doc.Focus)
	return doc
}

// takeInputBlock records the last input block of text on d and returns what
// precedes it. Text without a block is returned whole.
func (d *Document) takeInputBlock(text string) string {
	start, end, ph, ok := lastInputBlock(text)
	if !ok {
		return text
	}
	d.Placeholder = ph
	d.Tail = strings.TrimRight(text[end:], " \t\n")
	d.HasInputBlock = true
	return text[:start]
}

// Build is the inverse of Parse.
func (d Document) Build() string {
	ph := d.Placeholder
	if ph == "" {
		ph = PlaceholderDouble
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(normalize(d.Body)))
	if focus := strings.TrimSpace(normalize(d.Focus)); focus != "" {
		b.WriteString("\n\n")
		b.WriteString(FocusHeader)
		b.WriteString("\n\n")
		b.WriteString(focus)
	}
	b.WriteString("\n\n")
	b.WriteString(InputLabel)
	b.WriteString("\n")
	b.WriteString(ph)
	b.WriteString(d.Tail)
	b.WriteString("\n")
	return b.String()
}

// Render substitutes input into a prompt template. A template with neither
// placeholder gets an input block and a Cleaned: anchor appended.
func Render(template, input string) string {
	rendered := strings.ReplaceAll(template, PlaceholderDouble, input)
	rendered = strings.ReplaceAll(rendered, PlaceholderSingle, input)
	if rendered == template {
		return strings.TrimRight(template, " \t\r\n") + "\n\n" + InputLabel + "\n" + input + "\n\n" + CleanedAnchor
	}
	return rendered
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// lastInputBlock locates the last "User input:\n<ph>" that starts text or a
// line, across both placeholder spellings. start is where the block (including
// preceding blank lines) begins and end is just past the placeholder.
func lastInputBlock(text string) (start, end int, ph string, ok bool) {
	best := -1
	for _, p := range Placeholders {
		needle := InputLabel + "\n" + p
		limit := len(text)
		for {
			i := strings.LastIndex(text[:limit], needle)
			if i < 0 {
				break
			}
			if i == 0 || text[i-1] == '\n' {
				if i > best {
					best, end, ph = i, i+len(needle), p
				}
				break
			}
			limit = i + len(needle) - 1
		}
	}
	if best < 0 {
		return 0, 0, "", false
	}
	start = best
	for start > 0 && text[start-1] == '\n' {
		start--
	}
	return start, end, ph, true
}
