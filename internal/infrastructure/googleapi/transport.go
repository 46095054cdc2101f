package googleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/resilience"
)

const maxErrorBody = 4096

// Client is the HTTP plumbing shared by the Google report clients.
type Client struct {
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewClient(timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// Call describes one JSON request. Token is sent as a bearer credential when
// set. APIKey goes in a header so it never shows up in logged URLs.
type Call struct {
	Operation string
	Method    string
	URL       string
	Token     string
	APIKey    string
	Body      any
	Form      map[string]string
}

// Do executes the call and decodes a successful JSON response into out. The
// returned error always carries a domain kind.
func (c *Client) Do(ctx context.Context, call Call, out any) error {
	attempt := func(ctx context.Context) error {
		return c.roundTrip(ctx, call, out)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, call.Operation, attempt, classifyGoogleError)
	} else {
		err = attempt(ctx)
	}
	return wrapKind(strings.ReplaceAll(call.Operation, ".", " "), err)
}

func (c *Client) roundTrip(ctx context.Context, call Call, out any) error {
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	contentType := ""
	switch {
	case call.Body != nil:
		raw, err := json.Marshal(call.Body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", call.Operation, err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	case call.Form != nil:
		form := url.Values{}
		for k, v := range call.Form {
			form.Set(k, v)
		}
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, method, call.URL, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", call.Operation, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if call.Token != "" {
		req.Header.Set("Authorization", "Bearer "+call.Token)
	}
	if call.APIKey != "" {
		req.Header.Set("X-Goog-Api-Key", call.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("google %s request: %w", call.Operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newHTTPStatusError(call.Operation, resp, raw)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", call.Operation, err)
	}
	return nil
}
