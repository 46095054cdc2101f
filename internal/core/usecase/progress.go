package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/ports"
)

const blobRefPrefix = "blob:"

type StorageKeys struct {
	Progress  string
	Uploads   string
	Dashboard string
}

func NewStorageKeys(namespace string) StorageKeys {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		ns = "mileiq"
	}
	return StorageKeys{
		Progress:  ns + "_checklist_progress",
		Uploads:   ns + "_uploaded_files",
		Dashboard: ns + "_dashboard_data",
	}
}

// ProgressStore owns checklist completion, uploads and the last dashboard
// snapshot. Mutations stay in memory until Save, except uploads which are
// written as soon as they change.
type ProgressStore struct {
	catalog   *domain.Catalog
	store     ports.KeyValueStore
	blobs     ports.BlobStorage
	keys      StorageKeys
	namespace string
	logger    *slog.Logger
	now       func() time.Time

	// persistMu orders snapshot-and-write sequences so an older snapshot never
	// lands after a newer one.
	persistMu sync.Mutex
	mu        sync.RWMutex
	done      map[string]bool
	uploads   map[string][]domain.UploadRecord
}

func NewProgressStore(
	catalog *domain.Catalog,
	store ports.KeyValueStore,
	blobs ports.BlobStorage,
	namespace string,
	logger *slog.Logger,
) *ProgressStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressStore{
		catalog:   catalog,
		store:     store,
		blobs:     blobs,
		keys:      NewStorageKeys(namespace),
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
		done:      make(map[string]bool),
		uploads:   make(map[string][]domain.UploadRecord),
	}
}

func (s *ProgressStore) Load(ctx context.Context) error {
	progress, err := readState[map[string]bool](ctx, s, s.keys.Progress)
	if err != nil {
		return err
	}
	uploads, err := readState[map[string][]domain.UploadRecord](ctx, s, s.keys.Uploads)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(progress, uploads)
	return nil
}

func (s *ProgressStore) applyLocked(progress map[string]bool, uploads map[string][]domain.UploadRecord) {
	s.done = make(map[string]bool, s.catalog.Len())
	s.uploads = make(map[string][]domain.UploadRecord)
	for id, done := range progress {
		if done && s.catalog.Has(id) {
			s.done[id] = true
		}
	}
	for id, list := range uploads {
		if len(list) == 0 || !s.catalog.Has(id) {
			continue
		}
		s.uploads[id] = append([]domain.UploadRecord(nil), list...)
	}
}

func (s *ProgressStore) Items() []domain.ChecklistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := s.catalog.Items()
	out := make([]domain.ChecklistItem, 0, len(defs))
	for _, def := range defs {
		out = append(out, domain.ChecklistItem{
			CatalogItem: def,
			Done:        s.done[def.ID],
			Uploads:     append([]domain.UploadRecord(nil), s.uploads[def.ID]...),
		})
	}
	return out
}

func (s *ProgressStore) Snapshot() domain.ProgressSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.NewProgressSnapshot(len(s.done), s.catalog.Len())
}

func (s *ProgressStore) Toggle(itemID string) (bool, error) {
	if !s.catalog.Has(itemID) {
		return false, unknownItem("toggle", itemID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := !s.done[itemID]
	s.setLocked(itemID, next)
	return next, nil
}

func (s *ProgressStore) SetDone(itemID string, done bool) error {
	if !s.catalog.Has(itemID) {
		return unknownItem("set done", itemID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(itemID, done)
	return nil
}

func (s *ProgressStore) setLocked(itemID string, done bool) {
	if done {
		s.done[itemID] = true
		return
	}
	delete(s.done, itemID)
}

// Save writes the state of every catalog item, not only the ones that changed.
func (s *ProgressStore) Save(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	progress := s.progressMapLocked()
	uploads := s.uploadsCopyLocked()
	s.mu.RUnlock()

	if err := s.writeJSON(ctx, s.keys.Progress, progress); err != nil {
		return err
	}
	return s.writeJSON(ctx, s.keys.Uploads, uploads)
}

func (s *ProgressStore) AddUpload(ctx context.Context, itemID string, rec domain.UploadRecord) error {
	if !s.catalog.Has(itemID) {
		return unknownItem("add upload", itemID)
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.uploads[itemID] = append(s.uploads[itemID], rec)
	uploads := s.uploadsCopyLocked()
	s.mu.Unlock()

	return s.writeJSON(ctx, s.keys.Uploads, uploads)
}

// AttachFile stores the bytes in blob storage and records the upload.
func (s *ProgressStore) AttachFile(ctx context.Context, itemID, name, mimeType string, data io.Reader) (domain.UploadRecord, error) {
	if !s.catalog.Has(itemID) {
		return domain.UploadRecord{}, unknownItem("attach file", itemID)
	}
	if strings.TrimSpace(name) == "" {
		return domain.UploadRecord{}, domain.WrapError(domain.ErrInvalidInput, "attach file", fmt.Errorf("file name is required"))
	}

	key := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(name))
	size, err := s.blobs.Save(ctx, key, data)
	if err != nil {
		return domain.UploadRecord{}, fmt.Errorf("save upload blob: %w", err)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	rec := domain.NewUploadRecord(name, size, mimeType, blobRefPrefix+key, s.now())
	if err := s.AddUpload(ctx, itemID, rec); err != nil {
		return domain.UploadRecord{}, err
	}
	return rec, nil
}

func (s *ProgressStore) RemoveUpload(ctx context.Context, itemID string, index int) error {
	if !s.catalog.Has(itemID) {
		return unknownItem("remove upload", itemID)
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	list := s.uploads[itemID]
	if index < 0 || index >= len(list) {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidInput, "remove upload", fmt.Errorf("item %q has no upload at index %d", itemID, index))
	}
	list = append(list[:index:index], list[index+1:]...)
	if len(list) == 0 {
		delete(s.uploads, itemID)
	} else {
		s.uploads[itemID] = list
	}
	uploads := s.uploadsCopyLocked()
	s.mu.Unlock()

	return s.writeJSON(ctx, s.keys.Uploads, uploads)
}

func (s *ProgressStore) OpenBlob(ctx context.Context, ref string) (io.ReadCloser, error) {
	key, ok := strings.CutPrefix(ref, blobRefPrefix)
	if !ok || key == "" || strings.ContainsAny(key, `/\`) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open blob", fmt.Errorf("invalid blob reference %q", ref))
	}
	rc, err := s.blobs.Open(ctx, key)
	if err != nil {
		return nil, domain.WrapError(domain.ErrItemNotFound, "open blob", err)
	}
	return rc, nil
}

// ClearAll erases checklist, upload and dashboard state. The caller must pass
// the user's explicit confirmation.
func (s *ProgressStore) ClearAll(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return domain.WrapError(domain.ErrInvalidInput, "clear all", fmt.Errorf("explicit confirmation is required"))
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	for _, key := range []string{s.keys.Progress, s.keys.Uploads, s.keys.Dashboard} {
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}

	s.mu.Lock()
	s.applyLocked(nil, nil)
	s.mu.Unlock()

	s.logger.Info("progress_cleared")
	return nil
}

func (s *ProgressStore) ExportSnapshot(ctx context.Context, now time.Time) (domain.ExportDocument, error) {
	s.mu.RLock()
	doc := domain.ExportDocument{
		ExportDate: now.UTC().Format(time.RFC3339),
		Progress:   s.progressMapLocked(),
		Files:      s.uploadsCopyLocked(),
	}
	s.mu.RUnlock()

	if snap, ok := s.LoadDashboard(ctx); ok {
		doc.Dashboard = &snap
	}
	return doc, nil
}

func (s *ProgressStore) ExportFileName(now time.Time, ext string) string {
	ns := s.namespace
	if ns == "" {
		ns = "mileiq"
	}
	return domain.ExportFileName(ns, now, ext)
}

// Import restores checklist and upload state from an exported document and
// persists it.
func (s *ProgressStore) Import(ctx context.Context, doc domain.ExportDocument) error {
	if doc.Progress == nil {
		return domain.WrapError(domain.ErrInvalidInput, "import", fmt.Errorf("document has no progress section"))
	}
	s.mu.Lock()
	s.applyLocked(doc.Progress, doc.Files)
	s.mu.Unlock()
	return s.Save(ctx)
}

func (s *ProgressStore) SaveDashboard(ctx context.Context, snap domain.DashboardSnapshot) error {
	return s.writeJSON(ctx, s.keys.Dashboard, snap)
}

func (s *ProgressStore) LoadDashboard(ctx context.Context) (domain.DashboardSnapshot, bool) {
	snap, err := readState[*domain.DashboardSnapshot](ctx, s, s.keys.Dashboard)
	if err != nil {
		s.logger.Warn("dashboard_snapshot_read_failed", "error", err)
		return domain.DashboardSnapshot{}, false
	}
	if snap == nil || len(snap.Metrics) == 0 {
		return domain.DashboardSnapshot{}, false
	}
	return *snap, true
}

func (s *ProgressStore) progressMapLocked() map[string]bool {
	out := make(map[string]bool, s.catalog.Len())
	for _, item := range s.catalog.Items() {
		out[item.ID] = s.done[item.ID]
	}
	return out
}

func (s *ProgressStore) uploadsCopyLocked() map[string][]domain.UploadRecord {
	out := make(map[string][]domain.UploadRecord, len(s.uploads))
	for id, list := range s.uploads {
		out[id] = append([]domain.UploadRecord(nil), list...)
	}
	return out
}

// readState returns the zero value when the key is missing or holds malformed
// JSON. Only store failures are reported.
func readState[T any](ctx context.Context, s *ProgressStore, key string) (T, error) {
	var zero T
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return zero, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Warn("persisted_state_ignored",
			"key", key,
			"error", domain.WrapError(domain.ErrMalformedState, "decode "+key, err),
		)
		return zero, nil
	}
	return out, nil
}

func (s *ProgressStore) writeJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func unknownItem(operation, itemID string) error {
	return domain.WrapError(domain.ErrItemNotFound, operation, fmt.Errorf("unknown checklist item %q", itemID))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, base)
	if base == "" || base == "." {
		return "file"
	}
	return base
}
