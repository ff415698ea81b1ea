// Package fetcher retrieves raw payloads from upstream hazard feeds.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
)

// maxBodyBytes caps how much of an upstream response the fetcher will read.
const maxBodyBytes = 16 << 20

const userAgent = "tacmap-alert-pipeline/2.0"

// Fetcher performs one bounded HTTP GET per source descriptor. It never
// retries; retry policy belongs to the caller's next poll cycle.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	log     *logrus.Logger
}

// New creates a fetcher with the given per-source timeout.
func New(timeout time.Duration, log *logrus.Logger) *Fetcher {
	f := &Fetcher{timeout: timeout, log: log}
	f.client = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			log.WithFields(logrus.Fields{
				"from": via[len(via)-1].URL.String(),
				"to":   req.URL.String(),
				"hops": len(via),
			}).Debug("Following redirect")
			return nil
		},
	}
	return f
}

// Fetch retrieves one source's payload within the fetcher's timeout,
// bounded further by ctx. Failures come back as *feed.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, src feed.SourceDescriptor) (feed.RawPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return feed.RawPayload{}, &feed.FetchError{SourceID: src.ID, Reason: "invalid request", Err: err}
	}
	req.Header.Set("Accept", acceptHeader(src.Format))
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		reason := "request failed"
		if ctx.Err() != nil {
			reason = "timeout"
		}
		return feed.RawPayload{}, &feed.FetchError{SourceID: src.ID, Reason: reason, Err: err}
	}
	defer resp.Body.Close()

	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused, then report.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return feed.RawPayload{}, &feed.FetchError{
			SourceID: src.ID,
			Status:   resp.StatusCode,
			Reason:   fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return feed.RawPayload{}, &feed.FetchError{SourceID: src.ID, Reason: "reading response body", Err: err}
	}

	f.log.WithFields(logrus.Fields{
		"sourceId": src.ID,
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"latency":  latency.String(),
	}).Debug("Fetched source payload")

	return feed.RawPayload{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Status:      resp.StatusCode,
		Latency:     latency,
	}, nil
}

func acceptHeader(format feed.StreamFormat) string {
	switch format {
	case feed.FormatGeoJSON, feed.FormatArcGIS, feed.FormatJSON:
		return "application/json, application/geo+json"
	case feed.FormatRSS:
		return "application/rss+xml, application/atom+xml, application/xml"
	case feed.FormatCAP:
		return "application/cap+xml, application/xml"
	}
	return "*/*"
}
