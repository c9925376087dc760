// Package docgen ships concrete document-generation strategies built on the
// strategy execution contract: architecture decision records, change
// proposals and operational runbooks. Each generator validates its typed
// input, produces a markdown Document, and records its domain decisions on
// the ambient execution trace. The Catalog runs any registered generator by
// name from loosely-typed input, which is how the HTTP, MCP and CLI
// surfaces reach them.
package docgen

import (
	"strconv"
	"strings"
	"time"
)

// FormatMarkdown is the only output format the generators produce today.
const FormatMarkdown = "markdown"

// Section is one titled block of a generated document.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Document is the output of every generator strategy.
type Document struct {
	Title       string    `json:"title"`
	Format      string    `json:"format"`
	Body        string    `json:"body"`
	Sections    []Section `json:"sections"`
	WordCount   int       `json:"word_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// assemble renders the sections into one markdown body and fills in the
// derived fields.
func assemble(title string, sections []Section) Document {
	var b strings.Builder
	b.WriteString("# " + title + "\n")
	for _, s := range sections {
		b.WriteString("\n## " + s.Title + "\n\n")
		b.WriteString(strings.TrimRight(s.Body, "\n"))
		b.WriteString("\n")
	}
	body := b.String()
	return Document{
		Title:       title,
		Format:      FormatMarkdown,
		Body:        body,
		Sections:    sections,
		WordCount:   len(strings.Fields(body)),
		GeneratedAt: time.Now().UTC(),
	}
}

// bulletList renders items as a markdown bullet list.
func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	return b.String()
}

// numberedList renders items as a markdown numbered list.
func numberedList(items []string) string {
	var b strings.Builder
	for i, item := range items {
		b.WriteString(strconv.Itoa(i+1) + ". " + item + "\n")
	}
	return b.String()
}
