package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/segment-insights/internal/pkg/httpretry"
	"github.com/ignite/segment-insights/internal/segmentation"
)

// HTTPSource fetches the customer table as CSV from a URL, for pipelines
// that publish their output behind an HTTP endpoint.
type HTTPSource struct {
	url    string
	client httpretry.HTTPDoer
}

// NewHTTPSource creates a URL-backed loader. A nil client retries with the
// default backoff.
func NewHTTPSource(url string, client httpretry.HTTPDoer) *HTTPSource {
	if client == nil {
		client = httpretry.NewRetryClient(nil, 3)
	}
	return &HTTPSource{url: url, client: client}
}

// Load fetches and parses the document.
func (s *HTTPSource) Load(ctx context.Context) (segmentation.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return segmentation.Table{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return segmentation.Table{}, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return segmentation.Table{}, fmt.Errorf("fetch %s: status %d: %s", s.url, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return ReadTable(resp.Body)
}
