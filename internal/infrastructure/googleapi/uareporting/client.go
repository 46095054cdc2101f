package uareporting

import (
	"context"
	"net/http"
	"strings"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi"
)

const DefaultBaseURL = "https://analyticsreporting.googleapis.com"

// Client reads the same engagement rows from a Universal Analytics view
// through Reporting API v4.
type Client struct {
	api     *googleapi.Client
	baseURL string
	viewID  string
}

func New(api *googleapi.Client, baseURL, viewID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{api: api, baseURL: strings.TrimRight(baseURL, "/"), viewID: strings.TrimSpace(viewID)}
}

type expression struct {
	Expression string `json:"expression"`
}

type dimension struct {
	Name string `json:"name"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type reportRequest struct {
	ViewID     string       `json:"viewId"`
	DateRanges []dateRange  `json:"dateRanges"`
	Metrics    []expression `json:"metrics"`
	Dimensions []dimension  `json:"dimensions"`
}

type batchGetResponse struct {
	Reports []struct {
		Data struct {
			Rows []struct {
				Metrics []struct {
					Values []string `json:"values"`
				} `json:"metrics"`
			} `json:"rows"`
		} `json:"data"`
	} `json:"reports"`
}

func (c *Client) FetchTraffic(ctx context.Context, accessToken string, window domain.ReportWindow) ([]domain.TrafficRow, error) {
	req := reportRequest{
		ViewID: c.viewID,
		DateRanges: []dateRange{{
			StartDate: window.Start.Format(googleapi.DateLayout),
			EndDate:   window.End.Format(googleapi.DateLayout),
		}},
		Metrics: []expression{
			{Expression: "ga:sessions"},
			{Expression: "ga:users"},
			{Expression: "ga:bounceRate"},
			{Expression: "ga:avgSessionDuration"},
			{Expression: "ga:goalCompletionsAll"},
		},
		Dimensions: []dimension{{Name: "ga:date"}},
	}
	var resp batchGetResponse
	err := c.api.Do(ctx, googleapi.Call{
		Operation: "ua.batch_get",
		Method:    http.MethodPost,
		URL:       c.baseURL + "/v4/reports:batchGet",
		Token:     accessToken,
		Body:      map[string]any{"reportRequests": []reportRequest{req}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Reports) == 0 {
		return nil, nil
	}

	var rows []domain.TrafficRow
	for _, r := range resp.Reports[0].Data.Rows {
		if len(r.Metrics) == 0 {
			continue
		}
		values := r.Metrics[0].Values
		get := func(i int) string {
			if i < len(values) {
				return values[i]
			}
			return ""
		}

		var row domain.TrafficRow
		var err error
		if row.Sessions, err = googleapi.ParseInt(get(0)); err != nil {
			return nil, err
		}
		if row.Users, err = googleapi.ParseInt(get(1)); err != nil {
			return nil, err
		}
		bounce, err := googleapi.ParseFloat(get(2))
		if err != nil {
			return nil, err
		}
		// UA reports bounce rate as a percentage; GA4 as a fraction.
		row.BounceRate = bounce / 100
		if row.AvgSessionDuration, err = googleapi.ParseFloat(get(3)); err != nil {
			return nil, err
		}
		if row.Conversions, err = googleapi.ParseInt(get(4)); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
