package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CoveragePublisher posts coverage reports to an HTTP collection endpoint.
// Uploads are best-effort: callers log and ignore errors.
type CoveragePublisher struct {
	Endpoint   string
	Token      string
	Flags      []string
	Name       string
	HTTPClient *http.Client
}

// NewCoveragePublisher prepares a publisher for the given endpoint.
func NewCoveragePublisher(endpoint, token string) *CoveragePublisher {
	return &CoveragePublisher{
		Endpoint:   endpoint,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload sends one coverage report. The report path identifies the source
// blob; configured flags and name are passed as query parameters.
func (p *CoveragePublisher) Upload(ctx context.Context, path string, data []byte) error {
	if p.Endpoint == "" {
		return fmt.Errorf("coverage endpoint is required")
	}

	query := url.Values{}
	query.Set("path", path)
	if p.Name != "" {
		query.Set("name", p.Name)
	}
	if len(p.Flags) > 0 {
		query.Set("flags", strings.Join(p.Flags, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint+"?"+query.Encode(), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("coverage upload: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
