// Package pipeline drives the fan-out over all selected sources: fetch then
// normalize per source, under a bounded worker pool and an overall cycle
// deadline, with per-source failure isolation.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/cache"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/normalizer"
)

// Fetcher retrieves one source's raw payload.
type Fetcher interface {
	Fetch(ctx context.Context, src feed.SourceDescriptor) (feed.RawPayload, error)
}

// SourceResult is one source's slot in a cycle: either its alerts or a
// typed failure (*feed.FetchError, *feed.NormalizeError,
// *feed.UnsupportedFormatError). Never both.
type SourceResult struct {
	Source feed.SourceDescriptor
	Alerts []feed.Alert
	Err    error
}

// Orchestrator owns the per-cycle fan-out. Safe for concurrent cycles.
type Orchestrator struct {
	fetcher  Fetcher
	table    normalizer.Table
	payloads cache.PayloadCache
	workers  int
	deadline time.Duration
	log      *logrus.Logger
}

// New creates an orchestrator. workers caps concurrent outbound fetches
// independently of source count; deadline bounds the whole cycle.
func New(fetcher Fetcher, table normalizer.Table, payloads cache.PayloadCache, workers int, deadline time.Duration, log *logrus.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		fetcher:  fetcher,
		table:    table,
		payloads: payloads,
		workers:  workers,
		deadline: deadline,
		log:      log,
	}
}

// Run processes every source and returns one result slot per source, in
// input order. One source's failure never cancels or delays the others;
// sources still pending when the cycle deadline fires are recorded as
// fetch timeouts. Workers write only their own slots, so a single join
// suffices before the results are read.
func (o *Orchestrator) Run(ctx context.Context, sources []feed.SourceDescriptor) []SourceResult {
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	results := make([]SourceResult, len(sources))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = o.processSource(ctx, sources[i])
			}
		}()
	}

	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// processSource performs cache-get, fetch and normalize for one source,
// strictly in that order.
func (o *Orchestrator) processSource(ctx context.Context, src feed.SourceDescriptor) SourceResult {
	result := SourceResult{Source: src}

	if err := ctx.Err(); err != nil {
		result.Err = &feed.FetchError{SourceID: src.ID, Reason: "cycle deadline exceeded", Err: err}
		return result
	}

	norm, err := o.table.Lookup(src)
	if err != nil {
		result.Err = err
		return result
	}

	payload, err := o.payload(ctx, src)
	if err != nil {
		result.Err = err
		return result
	}

	alerts, err := norm.Normalize(payload, src)
	if err != nil {
		result.Err = err
		return result
	}

	o.log.WithFields(logrus.Fields{
		"sourceId":  src.ID,
		"alerts":    len(alerts),
		"fromCache": payload.FromCache,
	}).Debug("Source processed")

	result.Alerts = alerts
	return result
}

// payload consults the cache tier before fetching and populates it after a
// successful fetch. Cache failures degrade to a live fetch.
func (o *Orchestrator) payload(ctx context.Context, src feed.SourceDescriptor) (feed.RawPayload, error) {
	body, hit, err := o.payloads.Get(ctx, src.ID)
	if err != nil {
		o.log.WithFields(logrus.Fields{
			"sourceId": src.ID,
			"error":    err.Error(),
		}).Warn("Payload cache read failed, fetching live")
	}
	if hit {
		return feed.RawPayload{Body: body, Status: 200, FromCache: true}, nil
	}

	payload, err := o.fetcher.Fetch(ctx, src)
	if err != nil {
		return feed.RawPayload{}, err
	}

	if err := o.payloads.Set(ctx, src.ID, payload.Body); err != nil {
		o.log.WithFields(logrus.Fields{
			"sourceId": src.ID,
			"error":    err.Error(),
		}).Warn("Payload cache write failed")
	}

	return payload, nil
}
