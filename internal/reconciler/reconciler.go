// Package reconciler merges per-source alert lists into one ordered,
// freshness-aware collection with staleness metadata.
package reconciler

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/pipeline"
)

// Config holds the reconciliation thresholds. The dedup cell size and time
// window are deployment defaults, not confirmed upstream behaviour.
type Config struct {
	// DedupCellDegrees buckets geometry centroids; 0.005 degrees is roughly
	// 500 m at Australian latitudes.
	DedupCellDegrees float64

	// DedupWindow is how far apart two updated_at values may be while still
	// describing the same event.
	DedupWindow time.Duration

	// StaleThreshold is the minimum successful-source fraction below which
	// the cycle is marked stale even without outright failures.
	StaleThreshold float64
}

// DefaultConfig returns the deployment defaults.
func DefaultConfig() Config {
	return Config{
		DedupCellDegrees: 0.005,
		DedupWindow:      time.Hour,
		StaleThreshold:   0.8,
	}
}

// Result is the reconciled output of one aggregation cycle.
type Result struct {
	Alerts           []feed.Alert
	AlertCount       int
	SourcesAttempted int
	Stale            bool
	Error            string
}

// Reconcile applies freshness, dedup, ordering and metadata assembly over
// the cycle's per-source results.
func Reconcile(results []pipeline.SourceResult, now time.Time, cfg Config) Result {
	var alerts []feed.Alert
	var failedSources []string

	for _, res := range results {
		if res.Err != nil {
			failedSources = append(failedSources, res.Source.ID)
			continue
		}
		for _, alert := range res.Alerts {
			if alert.ExpiresAt != nil && alert.ExpiresAt.Before(now) {
				continue
			}
			alerts = append(alerts, alert)
		}
	}

	alerts = dedup(alerts, cfg)

	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.SeverityRank != b.SeverityRank {
			return a.SeverityRank < b.SeverityRank
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	out := Result{
		Alerts:           alerts,
		AlertCount:       len(alerts),
		SourcesAttempted: len(results),
	}

	if len(results) > 0 {
		successFraction := float64(len(results)-len(failedSources)) / float64(len(results))
		out.Stale = len(failedSources) > 0 || successFraction < cfg.StaleThreshold
	}
	if len(failedSources) > 0 {
		out.Error = fmt.Sprintf("sources failed: %s", strings.Join(failedSources, ", "))
	}

	return out
}

// dedupKey groups alerts likely to describe the same event: same
// jurisdiction and hazard, centroid in the same grid cell.
type dedupKey struct {
	jurisdiction feed.Jurisdiction
	hazard       string
	cellLon      int64
	cellLat      int64
}

// dedup collapses cross-source duplicates. Within a group the alert with
// the lowest severity rank wins, ties broken by highest confidence, then
// most recent update; suppressed alerts contribute their tags and source
// ids to the kept record. Alerts without geometry cannot be matched
// spatially and pass through untouched.
func dedup(alerts []feed.Alert, cfg Config) []feed.Alert {
	if cfg.DedupCellDegrees <= 0 {
		return alerts
	}

	groups := make(map[dedupKey][]feed.Alert)
	var order []dedupKey
	var passthrough []feed.Alert

	for _, alert := range alerts {
		if alert.Geometry == nil {
			passthrough = append(passthrough, alert)
			continue
		}
		centroid := alert.Geometry.Centroid()
		key := dedupKey{
			jurisdiction: alert.Jurisdiction,
			hazard:       alert.HazardType,
			cellLon:      int64(math.Floor(centroid.Lon / cfg.DedupCellDegrees)),
			cellLat:      int64(math.Floor(centroid.Lat / cfg.DedupCellDegrees)),
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], alert)
	}

	out := passthrough
	for _, key := range order {
		out = append(out, collapseGroup(groups[key], cfg.DedupWindow)...)
	}
	return out
}

// collapseGroup merges a spatial group's alerts whose updated_at fall
// within the dedup window of a kept record.
func collapseGroup(group []feed.Alert, window time.Duration) []feed.Alert {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if a.SeverityRank != b.SeverityRank {
			return a.SeverityRank < b.SeverityRank
		}
		if a.Confidence != b.Confidence {
			return a.Confidence.MoreConfidentThan(b.Confidence)
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	var kept []feed.Alert
	for _, candidate := range group {
		merged := false
		for i := range kept {
			delta := kept[i].UpdatedAt.Sub(candidate.UpdatedAt)
			if delta < 0 {
				delta = -delta
			}
			if delta <= window {
				kept[i] = mergeInto(kept[i], candidate)
				merged = true
				break
			}
		}
		if !merged {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// mergeInto folds a suppressed duplicate into the kept record: tag union
// plus the duplicate's source id, so suppression stays auditable.
func mergeInto(keeper, dup feed.Alert) feed.Alert {
	for _, tag := range dup.Tags {
		found := false
		for _, existing := range keeper.Tags {
			if existing == tag {
				found = true
				break
			}
		}
		if !found {
			keeper.Tags = append(keeper.Tags, tag)
		}
	}

	if dup.SourceID != keeper.SourceID {
		present := false
		for _, id := range keeper.MergedSourceIDs {
			if id == dup.SourceID {
				present = true
				break
			}
		}
		if !present {
			keeper.MergedSourceIDs = append(keeper.MergedSourceIDs, dup.SourceID)
		}
	}

	return keeper
}
