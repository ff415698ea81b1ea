// Package geojson normalizes GeoJSON FeatureCollection hazard feeds.
package geojson

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
)

// severityTable maps source-native warning levels onto the canonical rank.
// Keys are lowercased labels as published by Australian hazard feeds.
var severityTable = map[string]feed.SeverityRank{
	"emergency warning": feed.RankEmergency,
	"emergency":         feed.RankEmergency,
	"extreme":           feed.RankEmergency,
	"watch and act":     feed.RankWatchAndAct,
	"severe":            feed.RankWatchAndAct,
	"warning":           feed.RankWatchAndAct,
	"advice":            feed.RankAdvice,
	"moderate":          feed.RankAdvice,
	"minor":             feed.RankInformation,
	"information":       feed.RankInformation,
	"not applicable":    feed.RankInformation,
}

// Candidate property names, checked in order. Feeds disagree on naming, so
// each logical field has a preference list.
var (
	idKeys          = []string{"id", "guid", "identifier", "incidentNo"}
	titleKeys       = []string{"title", "name", "headline", "incidentType"}
	descriptionKeys = []string{"description", "text", "details", "summary"}
	severityKeys    = []string{"severity", "warningLevel", "warning_level", "category", "status"}
	updatedKeys     = []string{"updated", "lastUpdated", "updateDate", "pubDate"}
	issuedKeys      = []string{"issued", "created", "issueDate", "pubDate"}
	expiresKeys     = []string{"expires", "expiryDate", "validTo"}
	linkKeys        = []string{"url", "link", "webUrl"}
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
}

// Normalizer converts GeoJSON FeatureCollections into canonical alerts.
type Normalizer struct{}

// New returns a GeoJSON normalizer.
func New() *Normalizer { return &Normalizer{} }

type featureCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

type rawFeature struct {
	ID         interface{}            `json:"id"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   json.RawMessage        `json:"geometry"`
}

// Normalize parses a FeatureCollection payload. Features missing identity
// fields are dropped individually; only a payload that is not a valid
// FeatureCollection fails the whole source.
func (n *Normalizer) Normalize(payload feed.RawPayload, src feed.SourceDescriptor) ([]feed.Alert, error) {
	var fc featureCollection
	if err := json.Unmarshal(payload.Body, &fc); err != nil {
		return nil, &feed.NormalizeError{SourceID: src.ID, Format: feed.FormatGeoJSON, Reason: "invalid JSON", Err: err}
	}
	if fc.Type != "FeatureCollection" {
		return nil, &feed.NormalizeError{
			SourceID: src.ID,
			Format:   feed.FormatGeoJSON,
			Reason:   fmt.Sprintf("expected FeatureCollection, got %q", fc.Type),
		}
	}

	alerts := make([]feed.Alert, 0, len(fc.Features))
	for _, f := range fc.Features {
		alert, ok := n.normalizeFeature(f, src)
		if !ok {
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (n *Normalizer) normalizeFeature(f rawFeature, src feed.SourceDescriptor) (feed.Alert, bool) {
	nativeID := featureID(f)
	title := stringProp(f.Properties, titleKeys)
	if nativeID == "" || title == "" {
		// No stable identity, drop this feature only.
		return feed.Alert{}, false
	}

	severity := stringProp(f.Properties, severityKeys)
	rank, mapped := severityTable[strings.ToLower(strings.TrimSpace(severity))]
	confidence := src.BaseConfidence()
	if !mapped {
		rank = feed.RankInformation
		confidence = confidence.CapAt(feed.ConfidenceLow)
	}

	issued := timeProp(f.Properties, issuedKeys)
	updated := timeProp(f.Properties, updatedKeys)
	if updated.IsZero() {
		updated = issued
	}
	if issued.IsZero() {
		issued = updated
	}

	alert := feed.Alert{
		ID:           feed.AlertID(src.ID, nativeID),
		SourceID:     src.ID,
		Category:     src.Category,
		Subcategory:  src.Subcategory,
		Tags:         append([]string(nil), src.Tags...),
		Jurisdiction: src.Jurisdiction,
		HazardType:   src.HazardType(),
		Severity:     severity,
		SeverityRank: rank,
		Confidence:   confidence,
		Title:        title,
		Description:  stringProp(f.Properties, descriptionKeys),
		IssuedAt:     issued,
		UpdatedAt:    updated,
		SourceURL:    stringProp(f.Properties, linkKeys),
		Geometry:     parseGeometry(f.Geometry),
	}

	if expires := timeProp(f.Properties, expiresKeys); !expires.IsZero() {
		alert.ExpiresAt = &expires
	}

	return alert, true
}

// parseGeometry decodes and validates a feature geometry. Anything the
// pipeline cannot represent or that falls outside WGS84 bounds drops the
// geometry, not the feature.
func parseGeometry(raw json.RawMessage) *feed.Geometry {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var g feed.Geometry
	if err := g.UnmarshalJSON(raw); err != nil {
		return nil
	}
	if !g.Valid() {
		return nil
	}
	return &g
}

func featureID(f rawFeature) string {
	switch id := f.ID.(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return fmt.Sprintf("%.0f", id)
	}
	return stringProp(f.Properties, idKeys)
}

func stringProp(props map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if v, ok := props[key]; ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s
				}
			case float64:
				return fmt.Sprintf("%v", s)
			}
		}
	}
	return ""
}

func timeProp(props map[string]interface{}, keys []string) time.Time {
	raw := stringProp(props, keys)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
