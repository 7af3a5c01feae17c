// Package client is a small API client for the analysis service, including
// the polling loop a front end runs while waiting for report generation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultPollInterval = 4 * time.Second

// Terminal poll outcomes.
var (
	// ErrNotFound means the id is unknown; restart the flow.
	ErrNotFound = errors.New("analysis not found")
	// ErrPaymentRequired means the record is unpaid; redirect to checkout.
	ErrPaymentRequired = errors.New("payment required")
	// ErrProcessing means the report is not ready yet; poll again.
	ErrProcessing = errors.New("report still processing")
)

type Client struct {
	BaseURL      string
	HTTPClient   *http.Client
	PollInterval time.Duration
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:      baseURL,
		HTTPClient:   &http.Client{Timeout: 90 * time.Second},
		PollInterval: defaultPollInterval,
	}
}

// FreeResult is the teaser returned by the free-analysis endpoint.
type FreeResult struct {
	ID        string `json:"id"`
	Score     int    `json:"score"`
	RiskLevel string `json:"riskLevel"`
	Summary   string `json:"summary"`
}

// Report is the resolved report payload. The analysis payloads stay raw so
// the client package does not depend on server-internal types.
type Report struct {
	ID           string          `json:"id"`
	FreeAnalysis json.RawMessage `json:"freeAnalysis"`
	FullAnalysis json.RawMessage `json:"fullAnalysis"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// SubmitFree submits a transcript and returns the free risk teaser.
func (c *Client) SubmitFree(ctx context.Context, conversation string) (*FreeResult, error) {
	var out FreeResult
	err := c.post(ctx, "/free-analysis", map[string]any{"conversation": conversation}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCheckout returns the checkout redirect URL for an analysis id.
func (c *Client) CreateCheckout(ctx context.Context, id string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/create-checkout", map[string]any{"analysisId": id}, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// VerifyPayment confirms a checkout session against an analysis id after the
// redirect back from the provider.
func (c *Client) VerifyPayment(ctx context.Context, sessionRef, id string) error {
	return c.post(ctx, "/verify-payment", map[string]any{
		"sessionRef": sessionRef,
		"analysisId": id,
	}, nil)
}

// GetReport fetches the report once. It returns ErrProcessing while the
// report is pending, ErrPaymentRequired for unpaid records and ErrNotFound
// for unknown ids.
func (c *Client) GetReport(ctx context.Context, id string) (*Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/report/"+id, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var rep Report
		if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
			return nil, err
		}
		return &rep, nil
	case http.StatusAccepted:
		return nil, ErrProcessing
	case http.StatusForbidden:
		return nil, ErrPaymentRequired
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("report request failed: %s", resp.Status)
	}
}

// WaitForReport polls until a terminal state. Processing responses and
// transport errors are treated identically: wait one fixed interval and try
// again. It stops on ctx cancellation, on a ready report, on
// ErrPaymentRequired (caller redirects to checkout) and on any other hard
// error.
func (c *Client) WaitForReport(ctx context.Context, id string) (*Report, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	for {
		rep, err := c.GetReport(ctx, id)
		switch {
		case err == nil:
			return rep, nil
		case errors.Is(err, ErrProcessing), isTransient(err):
			// retry after the fixed delay
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// isTransient reports whether the error came from the transport rather than
// an HTTP status, excluding context cancellation.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// *url.Error wraps every transport failure from http.Client.Do
	var netErr *url.Error
	return errors.As(err, &netErr)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %s: %s", path, resp.Status, bytes.TrimSpace(payload))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
