// Package httpsource implements the data-source contract against the
// catalog REST API.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dive-atlas/viewport/internal/core/model"
	"github.com/dive-atlas/viewport/internal/source"
	"github.com/dive-atlas/viewport/internal/urlcodec"
)

type Source struct {
	logger *slog.Logger
	client *http.Client
	base   *url.URL
}

var _ source.Interface = (*Source)(nil)

func New(logger *slog.Logger, client *http.Client, baseURL string) (*Source, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	return &Source{logger: logger, client: client, base: u}, nil
}

// wire envelope returned by the catalog list endpoints
type listResponse struct {
	Items []json.RawMessage `json:"items"`
	Total int               `json:"total"`
}

type itemHeader struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

func (s *Source) Fetch(ctx context.Context, q source.Query) (model.Page, error) {
	u := *s.base
	u.Path = u.Path + "/api/v1/" + string(q.Entity)

	params := urlcodec.EncodeFilters(q.Filters)
	params.Set("bbox", q.BBox.String())
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return model.Page{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return model.Page{}, &source.RateLimitedError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return model.Page{}, fmt.Errorf("catalog status %d: %s", resp.StatusCode, string(b))
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Page{}, fmt.Errorf("decode response: %w", err)
	}

	page := model.Page{Total: body.Total, Features: make([]model.Feature, 0, len(body.Items))}
	for _, raw := range body.Items {
		var hdr itemHeader
		if err := json.Unmarshal(raw, &hdr); err != nil {
			// skip malformed items rather than failing the page
			continue
		}
		page.Features = append(page.Features, model.Feature{
			ID:        hdr.ID,
			Name:      hdr.Name,
			Longitude: hdr.Longitude,
			Latitude:  hdr.Latitude,
			Raw:       raw,
		})
	}

	s.logger.Debug("catalog fetch done",
		"entity", string(q.Entity),
		"items", len(page.Features),
		"duration", time.Since(start).String())
	return page, nil
}

// retryAfter reads the server's Retry-After hint in seconds, if any.
func retryAfter(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
