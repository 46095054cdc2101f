package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

//go:embed default.yaml
var defaultYAML []byte

type Section struct {
	ID    string               `yaml:"id"`
	Title string               `yaml:"title"`
	Items []domain.CatalogItem `yaml:"items"`
}

// Document is a parsed checklist: sections of items plus the critical path
// checkpoints shown beside the roadmap.
type Document struct {
	Sections     []Section `yaml:"sections"`
	CriticalPath []string  `yaml:"criticalPath"`
}

// Items flattens the sections in document order.
func (d Document) Items() []domain.CatalogItem {
	var out []domain.CatalogItem
	for _, s := range d.Sections {
		for _, item := range s.Items {
			item.Section = s.ID
			out = append(out, item)
		}
	}
	return out
}

// Source serves a checklist document read once at startup.
type Source struct {
	doc Document
}

// Open reads the checklist at path. YAML and HTML documents are recognised by
// extension; an empty path selects the embedded default checklist.
func Open(path string) (*Source, error) {
	if path == "" {
		doc, err := ParseYAML(defaultYAML)
		if err != nil {
			return nil, fmt.Errorf("parse default checklist: %w", err)
		}
		return &Source{doc: doc}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist: %w", err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err = ParseYAML(raw)
	case ".html", ".htm":
		doc, err = ParseHTML(strings.NewReader(string(raw)))
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "open checklist", fmt.Errorf("unsupported checklist format %q", filepath.Ext(path)))
	}
	if err != nil {
		return nil, fmt.Errorf("parse checklist %s: %w", path, err)
	}
	return &Source{doc: doc}, nil
}

func (s *Source) Load(_ context.Context) ([]domain.CatalogItem, error) {
	items := s.doc.Items()
	if len(items) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load checklist", fmt.Errorf("checklist has no items"))
	}
	return items, nil
}

func (s *Source) CriticalPath() []string {
	return append([]string(nil), s.doc.CriticalPath...)
}

func (s *Source) Sections() []Section {
	return append([]Section(nil), s.doc.Sections...)
}
