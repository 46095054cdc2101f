package ga4

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

func TestFetchTrafficDecodesByHeaderName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/properties/123:runReport" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req runReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.DateRanges) != 1 || req.DateRanges[0].StartDate != "2025-01-15" || req.DateRanges[0].EndDate != "2025-02-14" {
			t.Errorf("unexpected date ranges %+v", req.DateRanges)
		}
		_, _ = io.WriteString(w, `{
			"metricHeaders":[{"name":"totalUsers"},{"name":"sessions"},{"name":"bounceRate"},{"name":"averageSessionDuration"},{"name":"conversions"}],
			"rows":[
				{"metricValues":[{"value":"80"},{"value":"100"},{"value":"0.5"},{"value":"120.5"},{"value":"3"}]},
				{"metricValues":[{"value":"20"},{"value":"50"},{"value":"0.25"},{"value":"60"},{"value":"1"}]}
			]}`)
	}))
	defer srv.Close()

	client := New(googleapi.NewClient(time.Second, nil), srv.URL, "properties/123")
	now := time.Date(2025, 2, 14, 9, 30, 0, 0, time.UTC)
	rows, err := client.FetchTraffic(context.Background(), "tok", domain.TrailingWindow(now, domain.ReportWindowDays))
	if err != nil {
		t.Fatalf("FetchTraffic() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	want := domain.TrafficRow{Sessions: 100, Users: 80, BounceRate: 0.5, AvgSessionDuration: 120.5, Conversions: 3}
	if rows[0] != want {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
}

func TestFetchTrafficRejectsGarbageValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"metricHeaders":[{"name":"sessions"}],"rows":[{"metricValues":[{"value":"n/a"}]}]}`)
	}))
	defer srv.Close()

	client := New(googleapi.NewClient(time.Second, nil), srv.URL, "1")
	_, err := client.FetchTraffic(context.Background(), "tok", domain.TrailingWindow(time.Now(), 30))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
