package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type CatalogItem struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Section string `json:"section,omitempty" yaml:"-"`
}

// Catalog is the fixed universe of checklist item ids, in document order.
type Catalog struct {
	items []CatalogItem
	index map[string]int
}

func NewCatalog(items []CatalogItem) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(items))}
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: catalog item %q has empty id", ErrInvalidInput, item.Title)
		}
		if _, dup := c.index[id]; dup {
			return nil, fmt.Errorf("%w: duplicate catalog item id %q", ErrInvalidInput, id)
		}
		item.ID = id
		c.index[id] = len(c.items)
		c.items = append(c.items, item)
	}
	return c, nil
}

func (c *Catalog) Items() []CatalogItem {
	out := make([]CatalogItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

func (c *Catalog) Len() int {
	return len(c.items)
}

type ChecklistItem struct {
	CatalogItem
	Done    bool           `json:"done"`
	Uploads []UploadRecord `json:"uploads,omitempty"`
}

// UploadRecord describes a file attached to a checklist item. BlobRef only
// resolves while the process that accepted the upload is alive.
type UploadRecord struct {
	Name       string `json:"name"`
	Size       string `json:"size"`
	Type       string `json:"type"`
	UploadDate string `json:"uploadDate"`
	BlobRef    string `json:"url"`
}

func NewUploadRecord(name string, sizeBytes int64, mimeType, blobRef string, now time.Time) UploadRecord {
	return UploadRecord{
		Name:       name,
		Size:       FormatFileSize(sizeBytes),
		Type:       mimeType,
		UploadDate: now.UTC().Format(time.RFC3339),
		BlobRef:    blobRef,
	}
}

// FormatFileSize renders a byte count using base-1024 units.
func FormatFileSize(sizeBytes int64) string {
	if sizeBytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(sizeBytes))
}

type ProgressSnapshot struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

func NewProgressSnapshot(completed, total int) ProgressSnapshot {
	if total <= 0 {
		return ProgressSnapshot{}
	}
	if completed < 0 {
		completed = 0
	}
	if completed > total {
		completed = total
	}
	pct := int(math.Round(100 * float64(completed) / float64(total)))
	return ProgressSnapshot{Completed: completed, Total: total, Percentage: pct}
}

func (s ProgressSnapshot) Remaining() int {
	return s.Total - s.Completed
}

// Complete reports whether every item is done.
func (s ProgressSnapshot) Complete() bool {
	return s.Total > 0 && s.Completed == s.Total
}

type ProgressBand string

const (
	BandComplete ProgressBand = "complete"
	BandStrong   ProgressBand = "strong"
	BandSteady   ProgressBand = "steady"
	BandEarly    ProgressBand = "early"
	BandStarting ProgressBand = "starting"
)

func BandFor(progress ProgressSnapshot) ProgressBand {
	percentage := progress.Percentage
	switch {
	case progress.Complete():
		return BandComplete
	case percentage >= 75:
		return BandStrong
	case percentage >= 50:
		return BandSteady
	case percentage >= 25:
		return BandEarly
	default:
		return BandStarting
	}
}
