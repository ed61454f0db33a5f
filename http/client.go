// Package http implements the analysis service API over HTTP/JSON.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fwojciec/triage"
	"github.com/fwojciec/triage/logging"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ triage.Backend = (*Client)(nil)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4096

// networkErrorText is shown when a transport failure carries no message.
const networkErrorText = "Network error"

// Client talks to the analysis service at BaseURL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewClient returns a Client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	JiraID string `json:"jiraId"`
}

type analyzeResponse struct {
	RunID string `json:"runId"`
}

type rcaResponse struct {
	RCA string `json:"rca"`
}

type suggestResponse struct {
	Files triage.DiffBundle `json:"files"`
}

// StartAnalysis starts a run for ticketID and returns its RunID.
func (c *Client) StartAnalysis(ctx context.Context, ticketID string) (triage.RunID, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return "", triage.ErrMissingTicket
	}

	var resp analyzeResponse
	if err := c.do(ctx, "analyze", http.MethodPost, "/api/analyze", analyzeRequest{JiraID: ticketID}, &resp); err != nil {
		return "", err
	}
	if resp.RunID == "" {
		return "", triage.ErrNoRunID
	}
	return triage.RunID(resp.RunID), nil
}

// SaveCredentials stores tracker credentials on the service.
func (c *Client) SaveCredentials(ctx context.Context, creds triage.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	return c.do(ctx, "configure", http.MethodPost, "/api/config", creds.Trimmed(), nil)
}

// FetchRCA returns the run's root-cause analysis, or triage.NoRCAText
// when the service has none.
func (c *Client) FetchRCA(ctx context.Context, runID triage.RunID) (string, error) {
	if runID == "" {
		return "", triage.ErrMissingRun
	}

	var resp rcaResponse
	if err := c.do(ctx, "rca", http.MethodGet, "/api/rca/"+url.PathEscape(string(runID)), nil, &resp); err != nil {
		return "", err
	}
	if resp.RCA == "" {
		return triage.NoRCAText, nil
	}
	return resp.RCA, nil
}

// SuggestChanges asks the service for code changes fixing the run's issue.
func (c *Client) SuggestChanges(ctx context.Context, runID triage.RunID) (triage.DiffBundle, error) {
	if runID == "" {
		return nil, triage.ErrMissingRun
	}

	var resp suggestResponse
	if err := c.do(ctx, "suggest", http.MethodPost, "/api/suggest-changes/"+url.PathEscape(string(runID)), struct{}{}, &resp); err != nil {
		return nil, err
	}
	if resp.Files == nil {
		return triage.DiffBundle{}, nil
	}
	return resp.Files, nil
}

// do sends a JSON request and decodes a JSON response into out, when out
// is non-nil. Service and transport failures are returned as
// *triage.Error.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.BaseURL, "/")+path, body)
	if err != nil {
		return &triage.Error{Op: op, Message: err.Error()}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	logger := logging.OrDiscard(c.Logger).With("op", op, "request_id", requestID)
	start := time.Now()

	resp, err := c.httpClient().Do(req)
	if err != nil {
		logger.Warn("request failed", "err", err)
		return &triage.Error{Op: op, Message: transportMessage(err)}
	}
	defer resp.Body.Close()
	logger.Debug("request done", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &triage.Error{Op: op, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

// readError uses the response body as the message, falling back to the
// status code when the body is empty.
func readError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = fmt.Sprintf("Server returned %d", resp.StatusCode)
	}
	return &triage.Error{Op: op, Message: msg}
}

func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return networkErrorText
}
