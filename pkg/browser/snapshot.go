package browser

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DefaultSnapshotLength caps the visible text kept in a Snapshot.
const DefaultSnapshotLength = 512

// Snapshot is a compact, log-friendly view of what a page shows.
type Snapshot struct {
	URL       string
	Title     string
	Text      string
	Truncated bool
}

// String renders the snapshot on one line.
func (s *Snapshot) String() string {
	text := s.Text
	if s.Truncated {
		text += "..."
	}
	return fmt.Sprintf("url=%s title=%q text=%q", s.URL, s.Title, text)
}

// Describe snapshots the active page for diagnostics.
func (s *Session) Describe(ctx context.Context) (string, error) {
	page, err := s.touch(ctx)
	if err != nil {
		return "", err
	}

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}

	snap, err := pageText(content, DefaultSnapshotLength)
	if err != nil {
		return "", err
	}
	snap.URL = page.URL()
	return snap.String(), nil
}

// pageText extracts the title and visible text of an HTML document. Block
// elements become line breaks; runs of whitespace collapse to one space.
// Text is cut at maxLength bytes without splitting a character.
func pageText(rawHTML string, maxLength int) (*Snapshot, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	snap := &Snapshot{}

	var lines []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = current[:0]
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.CommentNode:
			return
		case html.TextNode:
			if text := collapse(n.Data); text != "" {
				current = append(current, text)
			}
			return
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if tag == "title" {
				if snap.Title == "" && n.FirstChild != nil {
					snap.Title = collapse(n.FirstChild.Data)
				}
				return
			}
			if isSkippedElement(tag) {
				return
			}
			if isBlockElement(tag) {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()

	text := strings.Join(lines, " | ")
	if len(text) > maxLength {
		cut := maxLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
		snap.Truncated = true
	}
	snap.Text = text
	return snap, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// isSkippedElement reports elements whose content is never shown as text.
func isSkippedElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template", "iframe", "embed", "object", "svg":
		return true
	}
	return false
}

// isBlockElement reports elements that start a new line of text.
func isBlockElement(tag string) bool {
	switch tag {
	case "div", "p", "section", "article", "header", "footer", "nav", "main", "aside",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li",
		"table", "tr", "td", "th", "form", "fieldset", "blockquote", "pre", "br", "button":
		return true
	}
	return false
}
