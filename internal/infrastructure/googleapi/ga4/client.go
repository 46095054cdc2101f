package ga4

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi"
)

const DefaultBaseURL = "https://analyticsdata.googleapis.com"

var reportMetrics = []string{"sessions", "totalUsers", "bounceRate", "averageSessionDuration", "conversions"}

// Client reads daily engagement totals from the GA4 Data API.
type Client struct {
	api        *googleapi.Client
	baseURL    string
	propertyID string
}

func New(api *googleapi.Client, baseURL, propertyID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		api:        api,
		baseURL:    strings.TrimRight(baseURL, "/"),
		propertyID: strings.TrimPrefix(strings.TrimSpace(propertyID), "properties/"),
	}
}

type nameRef struct {
	Name string `json:"name"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type runReportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Dimensions []nameRef   `json:"dimensions"`
	Metrics    []nameRef   `json:"metrics"`
}

type runReportResponse struct {
	MetricHeaders []nameRef `json:"metricHeaders"`
	Rows          []struct {
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
}

func (c *Client) FetchTraffic(ctx context.Context, accessToken string, window domain.ReportWindow) ([]domain.TrafficRow, error) {
	req := runReportRequest{
		DateRanges: []dateRange{{
			StartDate: window.Start.Format(googleapi.DateLayout),
			EndDate:   window.End.Format(googleapi.DateLayout),
		}},
		Dimensions: []nameRef{{Name: "date"}},
	}
	for _, name := range reportMetrics {
		req.Metrics = append(req.Metrics, nameRef{Name: name})
	}

	var resp runReportResponse
	err := c.api.Do(ctx, googleapi.Call{
		Operation: "ga4.run_report",
		Method:    http.MethodPost,
		URL:       fmt.Sprintf("%s/v1beta/properties/%s:runReport", c.baseURL, c.propertyID),
		Token:     accessToken,
		Body:      req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return decodeRows(resp)
}

// decodeRows resolves metric columns by header name so a reordered response
// still lands in the right fields.
func decodeRows(resp runReportResponse) ([]domain.TrafficRow, error) {
	column := make(map[string]int, len(resp.MetricHeaders))
	for i, h := range resp.MetricHeaders {
		column[h.Name] = i
	}
	if len(column) == 0 {
		for i, name := range reportMetrics {
			column[name] = i
		}
	}

	rows := make([]domain.TrafficRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		value := func(name string) string {
			i, ok := column[name]
			if !ok || i >= len(r.MetricValues) {
				return ""
			}
			return r.MetricValues[i].Value
		}

		var row domain.TrafficRow
		var err error
		if row.Sessions, err = googleapi.ParseInt(value("sessions")); err != nil {
			return nil, err
		}
		if row.Users, err = googleapi.ParseInt(value("totalUsers")); err != nil {
			return nil, err
		}
		if row.BounceRate, err = googleapi.ParseFloat(value("bounceRate")); err != nil {
			return nil, err
		}
		if row.AvgSessionDuration, err = googleapi.ParseFloat(value("averageSessionDuration")); err != nil {
			return nil, err
		}
		if row.Conversions, err = googleapi.ParseInt(value("conversions")); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
