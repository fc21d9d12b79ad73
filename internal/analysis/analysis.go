// Package analysis talks to the remote document analysis service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"legalease/internal/model"
)

const processPath = "/process-pdf-url/"

var (
	ErrAnalysis          = errors.New("analysis failed")
	ErrMalformedResponse = fmt.Errorf("%w: could not process the report returned by the server", ErrAnalysis)
)

// ServiceError is a non-success answer that carried a "detail" message.
// Error returns the detail unchanged so it can be shown to the user.
type ServiceError struct {
	Status int
	Detail string
}

func (e *ServiceError) Error() string { return e.Detail }

func (e *ServiceError) Unwrap() error { return ErrAnalysis }

type Client struct {
	url    string
	hc     *http.Client
	logger *slog.Logger
}

// New builds a client for baseURL. A zero timeout means 120s.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		url: strings.TrimRight(baseURL, "/") + processPath,
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type processRequest struct {
	URL string `json:"url"`
}

// Analyze asks the service to analyse the document at locator.URL and validates the report.
func (c *Client) Analyze(ctx context.Context, locator model.StorageLocator) (*model.StructuredReport, error) {
	payload, err := json.Marshal(processRequest{URL: locator.URL})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrAnalysis, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrAnalysis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrAnalysis, err)
	}
	c.logger.Info("analysis_response", "status", resp.StatusCode, "bytes", len(body), "latency", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, body)
	}
	return decodeReport(body)
}

func statusError(status int, body []byte) error {
	var e struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil {
		switch d := e.Detail.(type) {
		case string:
			if d != "" {
				return &ServiceError{Status: status, Detail: d}
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return &ServiceError{Status: status, Detail: string(b)}
			}
		}
	}
	return fmt.Errorf("%w: API request failed with status %d", ErrAnalysis, status)
}

func decodeReport(body []byte) (*model.StructuredReport, error) {
	var envelope struct {
		Report json.RawMessage `json:"report"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	var text string
	if len(envelope.Report) == 0 || json.Unmarshal(envelope.Report, &text) != nil {
		return nil, fmt.Errorf("%w: report is not a string", ErrMalformedResponse)
	}
	return ParseReport(text)
}

// ParseReport strips code fences from text and decodes it as a report.
// The payload must be a JSON object with a string summary.
func ParseReport(text string) (*model.StructuredReport, error) {
	clean := StripFences(text)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	var summary string
	raw, ok := fields["summary"]
	if !ok || string(raw) == "null" || json.Unmarshal(raw, &summary) != nil {
		return nil, fmt.Errorf("%w: summary missing", ErrMalformedResponse)
	}

	var report model.StructuredReport
	if err := json.Unmarshal([]byte(clean), &report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &report, nil
}

// StripFences removes a leading ```json (or bare ```) fence and a trailing ``` fence.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
