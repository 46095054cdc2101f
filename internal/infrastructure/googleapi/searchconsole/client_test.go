package searchconsole

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi"
)

func TestFetchSearchEscapesSiteAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/webmasters/v3/sites/https:%2F%2Fmileiq.com%2F/searchAnalytics/query" {
			t.Errorf("unexpected path %q", got)
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.RowLimit != dailyRowLimit || len(req.Dimensions) != 1 || req.Dimensions[0] != "date" {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = io.WriteString(w, `{"rows":[
			{"keys":["2025-02-01"],"clicks":10,"impressions":100,"ctr":0.1,"position":4.2},
			{"keys":["2025-02-02"],"clicks":0,"impressions":0,"ctr":0,"position":0}
		]}`)
	}))
	defer srv.Close()

	client := New(googleapi.NewClient(time.Second, nil), srv.URL, "https://mileiq.com/")
	rows, err := client.FetchSearch(context.Background(), "tok", domain.TrailingWindow(time.Now(), 30))
	if err != nil {
		t.Fatalf("FetchSearch() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Key != "2025-02-01" || rows[0].Clicks != 10 || rows[0].Impressions != 100 || rows[0].Position != 4.2 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
}

func TestFetchTopQueriesUsesLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RowLimit != 10 || req.Dimensions[0] != "query" {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = io.WriteString(w, `{"rows":[{"keys":["mileage tracker"],"clicks":50,"impressions":900,"position":1.4}]}`)
	}))
	defer srv.Close()

	client := New(googleapi.NewClient(time.Second, nil), srv.URL, "https://mileiq.com")
	rows, err := client.FetchTopQueries(context.Background(), "tok", domain.TrailingWindow(time.Now(), 30), 10)
	if err != nil {
		t.Fatalf("FetchTopQueries() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Key != "mileage tracker" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestFetchSearchForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"User does not have sufficient permission for site","status":"PERMISSION_DENIED"}}`)
	}))
	defer srv.Close()

	client := New(googleapi.NewClient(time.Second, nil), srv.URL, "https://mileiq.com")
	_, err := client.FetchSearch(context.Background(), "tok", domain.TrailingWindow(time.Now(), 30))
	if !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
