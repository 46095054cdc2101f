package pagespeed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi"
)

const DefaultBaseURL = "https://www.googleapis.com"

// Client audits the live site with PageSpeed Insights. It uses an API key,
// not the user's credential, and a local limiter keeps it inside the free quota.
type Client struct {
	api      *googleapi.Client
	baseURL  string
	apiKey   string
	siteURL  string
	strategy string
	limiter  *rate.Limiter
}

type Options struct {
	BaseURL  string
	APIKey   string
	SiteURL  string
	Strategy string
	// Limiter defaults to one audit per minute with a burst of two.
	Limiter *rate.Limiter
}

func New(api *googleapi.Client, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Strategy == "" {
		opts.Strategy = "mobile"
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(time.Minute), 2)
	}
	return &Client{
		api:      api,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		siteURL:  opts.SiteURL,
		strategy: opts.Strategy,
		limiter:  opts.Limiter,
	}
}

type audit struct {
	NumericValue float64 `json:"numericValue"`
	DisplayValue string  `json:"displayValue"`
}

type runPagespeedResponse struct {
	LighthouseResult struct {
		Audits     map[string]audit `json:"audits"`
		Categories struct {
			Performance struct {
				Score *float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
}

func (c *Client) Audit(ctx context.Context) (domain.PageAudit, error) {
	if c.apiKey == "" || c.siteURL == "" {
		return domain.PageAudit{}, domain.WrapError(domain.ErrNotConfigured, "pagespeed run", fmt.Errorf("api key or site url is missing"))
	}
	if !c.limiter.Allow() {
		return domain.PageAudit{}, domain.WrapError(domain.ErrQuotaDeferred, "pagespeed run", fmt.Errorf("audit budget spent for this hour"))
	}

	query := url.Values{}
	query.Set("url", c.siteURL)
	query.Set("category", "performance")
	query.Set("strategy", c.strategy)

	var resp runPagespeedResponse
	err := c.api.Do(ctx, googleapi.Call{
		Operation: "pagespeed.run",
		Method:    http.MethodGet,
		URL:       c.baseURL + "/pagespeedonline/v5/runPagespeed?" + query.Encode(),
		APIKey:    c.apiKey,
	}, &resp)
	if err != nil {
		return domain.PageAudit{}, err
	}

	audits := resp.LighthouseResult.Audits
	if len(audits) == 0 || resp.LighthouseResult.Categories.Performance.Score == nil {
		return domain.PageAudit{}, domain.WrapError(domain.ErrTemporary, "pagespeed run", fmt.Errorf("response has no lighthouse result"))
	}
	cls := audits["cumulative-layout-shift"]
	return domain.PageAudit{
		LCPMillis:         audits["largest-contentful-paint"].NumericValue,
		BlockingMillis:    audits["total-blocking-time"].NumericValue,
		LayoutShiftRaw:    cls.NumericValue,
		LayoutShiftString: cls.DisplayValue,
		Score:             *resp.LighthouseResult.Categories.Performance.Score * 100,
	}, nil
}
