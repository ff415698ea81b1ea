// Package assembler projects a reconciled alert set into the external
// GeoJSON feature collection shape. Purely a projection; no business logic.
package assembler

import (
	"time"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/reconciler"
)

// Feature is one alert rendered as a GeoJSON feature. Geometry may be null.
type Feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Geometry   *feed.Geometry `json:"geometry"`
	Properties Properties     `json:"properties"`
}

// Properties carries the alert fields a map client renders.
type Properties struct {
	SourceID        string            `json:"sourceId"`
	Category        feed.Category     `json:"category"`
	Subcategory     string            `json:"subcategory,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	Jurisdiction    feed.Jurisdiction `json:"jurisdiction"`
	HazardType      string            `json:"hazardType"`
	Severity        string            `json:"severity,omitempty"`
	SeverityRank    feed.SeverityRank `json:"severityRank"`
	Confidence      feed.Confidence   `json:"confidence"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	IssuedAt        string            `json:"issuedAt,omitempty"`
	UpdatedAt       string            `json:"updatedAt,omitempty"`
	ExpiresAt       string            `json:"expiresAt,omitempty"`
	SourceURL       string            `json:"sourceUrl,omitempty"`
	AgeSeconds      int64             `json:"age_s"`
	MergedSourceIDs []string          `json:"mergedSourceIds,omitempty"`
}

// Metadata is the cycle-level block callers use to tell "no alerts" apart
// from "sources degraded".
type Metadata struct {
	AlertCount       int    `json:"alertCount"`
	SourcesAttempted int    `json:"sourcesAttempted"`
	Stale            bool   `json:"stale"`
	Error            string `json:"error,omitempty"`
	GeneratedAt      string `json:"generatedAt"`
}

// FeatureCollection is the assembled response body.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
	Metadata Metadata  `json:"metadata"`
}

// Assemble renders the reconciled result. Alert ages are computed against
// now, at assembly time.
func Assemble(result reconciler.Result, now time.Time) FeatureCollection {
	features := make([]Feature, 0, len(result.Alerts))
	for _, alert := range result.Alerts {
		features = append(features, assembleFeature(alert, now))
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
		Metadata: Metadata{
			AlertCount:       result.AlertCount,
			SourcesAttempted: result.SourcesAttempted,
			Stale:            result.Stale,
			Error:            result.Error,
			GeneratedAt:      now.UTC().Format(time.RFC3339),
		},
	}
}

func assembleFeature(alert feed.Alert, now time.Time) Feature {
	props := Properties{
		SourceID:        alert.SourceID,
		Category:        alert.Category,
		Subcategory:     alert.Subcategory,
		Tags:            alert.Tags,
		Jurisdiction:    alert.Jurisdiction,
		HazardType:      alert.HazardType,
		Severity:        alert.Severity,
		SeverityRank:    alert.SeverityRank,
		Confidence:      alert.Confidence,
		Title:           alert.Title,
		Description:     alert.Description,
		SourceURL:       alert.SourceURL,
		MergedSourceIDs: alert.MergedSourceIDs,
	}

	if !alert.IssuedAt.IsZero() {
		props.IssuedAt = alert.IssuedAt.UTC().Format(time.RFC3339)
	}
	if !alert.UpdatedAt.IsZero() {
		props.UpdatedAt = alert.UpdatedAt.UTC().Format(time.RFC3339)
		props.AgeSeconds = int64(now.Sub(alert.UpdatedAt).Seconds())
	}
	if alert.ExpiresAt != nil {
		props.ExpiresAt = alert.ExpiresAt.UTC().Format(time.RFC3339)
	}

	return Feature{
		Type:       "Feature",
		ID:         alert.ID,
		Geometry:   alert.Geometry,
		Properties: props,
	}
}
