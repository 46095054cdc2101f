package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

type kvFake struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newKVFake() *kvFake {
	return &kvFake{data: make(map[string][]byte)}
}

func (f *kvFake) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *kvFake) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *kvFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

type blobFake struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newBlobFake() *blobFake {
	return &blobFake{blobs: make(map[string][]byte)}
}

func (f *blobFake) Save(_ context.Context, key string, data io.Reader) (int64, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = raw
	return int64(len(raw)), nil
}

func (f *blobFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.blobs[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type credentialStoreFake struct {
	mu      sync.Mutex
	cred    domain.Credential
	cleared int
}

func (f *credentialStoreFake) Save(_ context.Context, cred domain.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cred = cred
	return nil
}

func (f *credentialStoreFake) Load(context.Context) (domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cred.Empty() {
		return domain.Credential{}, domain.ErrNoSession
	}
	return f.cred, nil
}

func (f *credentialStoreFake) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cred = domain.Credential{}
	f.cleared++
	return nil
}

type consentFake struct {
	cred domain.Credential
	err  error
}

func (f consentFake) RequestGrant(context.Context) (domain.Credential, error) {
	return f.cred, f.err
}

type verifierFake struct {
	live  bool
	err   error
	calls int
}

func (f *verifierFake) Verify(context.Context, string) (bool, error) {
	f.calls++
	return f.live, f.err
}

type revokerFake struct {
	err     error
	revoked []string
}

func (f *revokerFake) Revoke(_ context.Context, token string) error {
	f.revoked = append(f.revoked, token)
	return f.err
}

type notifierFake struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (f *notifierFake) Notify(_ context.Context, n domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
}

func (f *notifierFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *notifierFake) withAction(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sent := range f.sent {
		if sent.Action == action {
			n++
		}
	}
	return n
}

// trafficFake serves queued responses; a response with a block channel waits
// for it to close before returning.
type trafficFake struct {
	mu        sync.Mutex
	responses []trafficResponse
	calls     int
}

type trafficResponse struct {
	rows    []domain.TrafficRow
	err     error
	started chan struct{}
	block   chan struct{}
}

func (f *trafficFake) FetchTraffic(ctx context.Context, _ string, _ domain.ReportWindow) ([]domain.TrafficRow, error) {
	f.mu.Lock()
	resp := f.responses[min(f.calls, len(f.responses)-1)]
	f.calls++
	f.mu.Unlock()

	if resp.started != nil {
		close(resp.started)
	}
	if resp.block != nil {
		select {
		case <-resp.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp.rows, resp.err
}

type searchFake struct {
	rows     []domain.SearchRow
	queries  []domain.SearchRow
	err      error
	queryErr error
}

func (f searchFake) FetchSearch(context.Context, string, domain.ReportWindow) ([]domain.SearchRow, error) {
	return f.rows, f.err
}

func (f searchFake) FetchTopQueries(context.Context, string, domain.ReportWindow, int) ([]domain.SearchRow, error) {
	return f.queries, f.queryErr
}

type auditFake struct {
	mu     sync.Mutex
	audits []domain.PageAudit
	err    error
	calls  int
}

func (f *auditFake) Audit(context.Context) (domain.PageAudit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.PageAudit{}, f.err
	}
	audit := f.audits[min(f.calls, len(f.audits)-1)]
	f.calls++
	return audit, nil
}

type tokenSourceFake struct {
	mu           sync.Mutex
	token        string
	unauthorized []domain.SourceName
}

func (f *tokenSourceFake) AccessToken() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *tokenSourceFake) HandleUnauthorized(_ context.Context, source domain.SourceName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unauthorized = append(f.unauthorized, source)
	f.token = ""
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 2, 14, 9, 30, 0, 0, time.UTC) }
}

func testCatalog(ids ...string) *domain.Catalog {
	items := make([]domain.CatalogItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, domain.CatalogItem{ID: id, Title: id})
	}
	catalog, err := domain.NewCatalog(items)
	if err != nil {
		panic(err)
	}
	return catalog
}

// quotaAuditFake admits budget audits and defers the rest.
type quotaAuditFake struct {
	inner  *auditFake
	budget int
}

func (f *quotaAuditFake) Audit(ctx context.Context) (domain.PageAudit, error) {
	if f.budget == 0 {
		return domain.PageAudit{}, domain.WrapError(domain.ErrQuotaDeferred, "page audit", errors.New("budget spent"))
	}
	f.budget--
	return f.inner.Audit(ctx)
}
