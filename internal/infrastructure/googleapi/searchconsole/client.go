package searchconsole

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi"
)

const (
	DefaultBaseURL = "https://searchconsole.googleapis.com"
	dailyRowLimit  = 30
)

// Client queries Search Console search analytics for one verified site.
type Client struct {
	api     *googleapi.Client
	baseURL string
	siteURL string
}

func New(api *googleapi.Client, baseURL, siteURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{api: api, baseURL: strings.TrimRight(baseURL, "/"), siteURL: strings.TrimSpace(siteURL)}
}

type queryRequest struct {
	StartDate       string   `json:"startDate"`
	EndDate         string   `json:"endDate"`
	Dimensions      []string `json:"dimensions"`
	RowLimit        int      `json:"rowLimit"`
	AggregationType string   `json:"aggregationType,omitempty"`
}

type queryResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		CTR         float64  `json:"ctr"`
		Position    float64  `json:"position"`
	} `json:"rows"`
}

func (c *Client) FetchSearch(ctx context.Context, accessToken string, window domain.ReportWindow) ([]domain.SearchRow, error) {
	return c.query(ctx, "search_console.daily", accessToken, queryRequest{
		StartDate:       window.Start.Format(googleapi.DateLayout),
		EndDate:         window.End.Format(googleapi.DateLayout),
		Dimensions:      []string{"date"},
		RowLimit:        dailyRowLimit,
		AggregationType: "byProperty",
	})
}

func (c *Client) FetchTopQueries(ctx context.Context, accessToken string, window domain.ReportWindow, limit int) ([]domain.SearchRow, error) {
	if limit <= 0 {
		limit = 10
	}
	return c.query(ctx, "search_console.top_queries", accessToken, queryRequest{
		StartDate:  window.Start.Format(googleapi.DateLayout),
		EndDate:    window.End.Format(googleapi.DateLayout),
		Dimensions: []string{"query"},
		RowLimit:   limit,
	})
}

func (c *Client) query(ctx context.Context, operation, accessToken string, req queryRequest) ([]domain.SearchRow, error) {
	var resp queryResponse
	err := c.api.Do(ctx, googleapi.Call{
		Operation: operation,
		Method:    http.MethodPost,
		URL:       fmt.Sprintf("%s/webmasters/v3/sites/%s/searchAnalytics/query", c.baseURL, url.PathEscape(c.siteURL)),
		Token:     accessToken,
		Body:      req,
	}, &resp)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.SearchRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		row := domain.SearchRow{
			Impressions: int64(r.Impressions),
			Clicks:      int64(r.Clicks),
			Position:    r.Position,
		}
		if len(r.Keys) > 0 {
			row.Key = r.Keys[0]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
