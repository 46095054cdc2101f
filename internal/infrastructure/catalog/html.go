package catalog

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

// ParseHTML reads a checklist page. Every checkbox inside an element of class
// "checklist-item" is an item keyed by its id; the nearest enclosing element
// with class "phase-card" names its section; ".path-item" elements are the
// critical path checkpoints.
func ParseHTML(r io.Reader) (Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return Document{}, fmt.Errorf("decode html: %w", err)
	}

	var doc Document
	sectionIndex := map[string]int{}

	var walk func(n *html.Node, section string, inItem *html.Node)
	walk = func(n *html.Node, section string, inItem *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "phase-card"):
				if id := attr(n, "id"); id != "" {
					section = id
				}
			case hasClass(n, "checklist-item"):
				inItem = n
			case hasClass(n, "path-item"):
				if title := textContent(n); title != "" {
					doc.CriticalPath = append(doc.CriticalPath, title)
				}
				return
			}

			if n.Data == "input" && attr(n, "type") == "checkbox" && inItem != nil {
				if id := attr(n, "id"); id != "" {
					idx, ok := sectionIndex[section]
					if !ok {
						idx = len(doc.Sections)
						sectionIndex[section] = idx
						doc.Sections = append(doc.Sections, Section{ID: section, Title: section})
					}
					doc.Sections[idx].Items = append(doc.Sections[idx].Items, domain.CatalogItem{
						ID:    id,
						Title: textContent(inItem),
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, section, inItem)
		}
	}
	walk(root, "", nil)
	return doc, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
