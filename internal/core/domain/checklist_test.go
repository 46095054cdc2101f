package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]CatalogItem{{ID: "a"}, {ID: "a"}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for duplicate id, got %v", err)
	}
}

func TestProgressSnapshotPercentage(t *testing.T) {
	if got := NewProgressSnapshot(0, 0); got.Percentage != 0 || got.Total != 0 {
		t.Fatalf("expected empty snapshot for zero items, got %+v", got)
	}
	if got := NewProgressSnapshot(1, 3).Percentage; got != 33 {
		t.Fatalf("expected 33%%, got %d", got)
	}
	if got := NewProgressSnapshot(2, 3).Percentage; got != 67 {
		t.Fatalf("expected 67%%, got %d", got)
	}

	const total = 41
	prev := -1
	for completed := 0; completed <= total; completed++ {
		pct := NewProgressSnapshot(completed, total).Percentage
		if pct < prev || pct < 0 || pct > 100 {
			t.Fatalf("completed=%d produced out of order percentage %d after %d", completed, pct, prev)
		}
		prev = pct
	}
}

func TestBandFor(t *testing.T) {
	cases := map[int]ProgressBand{100: BandComplete, 75: BandStrong, 50: BandSteady, 25: BandEarly, 24: BandStarting}
	for pct, want := range cases {
		if got := BandFor(NewProgressSnapshot(pct, 100)); got != want {
			t.Fatalf("pct=%d expected %s, got %s", pct, want, got)
		}
	}
	if got := BandFor(NewProgressSnapshot(199, 200)); got != BandStrong {
		t.Fatalf("expected 199/200 to stay short of complete, got %s", got)
	}
}

func TestNewUploadRecordFormatsSizeAndDate(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	rec := NewUploadRecord("redirects.csv", 1024, "text/csv", "blob:1", now)
	if rec.Size != "1.0 KiB" {
		t.Fatalf("unexpected size %q", rec.Size)
	}
	if rec.UploadDate != "2025-03-04T05:06:07Z" {
		t.Fatalf("unexpected upload date %q", rec.UploadDate)
	}
	if FormatFileSize(0) != "0 B" {
		t.Fatalf("unexpected zero size %q", FormatFileSize(0))
	}
}
