// Package arcgis normalizes ArcGIS FeatureServer query responses.
package arcgis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
)

const earthRadius = 6378137.0

// FieldMap declares the attribute names one service uses for the three
// fields the normalizer needs. FeatureServer schemas are service-specific,
// so the map is selected by the source descriptor's subcategory.
type FieldMap struct {
	Title     string
	Severity  string
	Timestamp string
}

// fieldMaps keys are lowercased descriptor subcategories. Services without
// a dedicated entry use defaultFieldMap.
var fieldMaps = map[string]FieldMap{
	"bushfire": {Title: "incident_name", Severity: "warning_level", Timestamp: "last_updated"},
	"flood":    {Title: "flood_name", Severity: "class", Timestamp: "obs_time"},
	"incident": {Title: "title", Severity: "severity", Timestamp: "updated"},
}

var defaultFieldMap = FieldMap{Title: "title", Severity: "severity", Timestamp: "updated"}

// idAttributes are checked in order for a feature's native identifier.
var idAttributes = []string{"OBJECTID", "objectid", "id", "globalid", "GlobalID"}

// severityTable maps service warning labels onto the canonical rank.
var severityTable = map[string]feed.SeverityRank{
	"emergency warning": feed.RankEmergency,
	"emergency":         feed.RankEmergency,
	"extreme":           feed.RankEmergency,
	"watch and act":     feed.RankWatchAndAct,
	"severe":            feed.RankWatchAndAct,
	"major":             feed.RankWatchAndAct,
	"advice":            feed.RankAdvice,
	"moderate":          feed.RankAdvice,
	"minor":             feed.RankInformation,
	"information":       feed.RankInformation,
}

// Normalizer converts FeatureServer responses into canonical alerts.
type Normalizer struct{}

// New returns an ArcGIS normalizer.
func New() *Normalizer { return &Normalizer{} }

type featureServerResponse struct {
	Features         []arcFeature      `json:"features"`
	SpatialReference *spatialReference `json:"spatialReference"`
	Error            *serverError      `json:"error"`
}

type serverError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type spatialReference struct {
	WKID       int `json:"wkid"`
	LatestWKID int `json:"latestWkid"`
}

type arcFeature struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   *arcGeometry           `json:"geometry"`
}

type arcGeometry struct {
	X     *float64      `json:"x"`
	Y     *float64      `json:"y"`
	Paths [][][]float64 `json:"paths"`
	Rings [][][]float64 `json:"rings"`
}

// Normalize parses a FeatureServer features array. The service's native
// spatial reference is reprojected to WGS84 before emission; features with
// unmapped attributes or no identity are dropped individually.
func (n *Normalizer) Normalize(payload feed.RawPayload, src feed.SourceDescriptor) ([]feed.Alert, error) {
	var resp featureServerResponse
	if err := json.Unmarshal(payload.Body, &resp); err != nil {
		return nil, &feed.NormalizeError{SourceID: src.ID, Format: feed.FormatArcGIS, Reason: "invalid JSON", Err: err}
	}
	if resp.Error != nil {
		return nil, &feed.NormalizeError{
			SourceID: src.ID,
			Format:   feed.FormatArcGIS,
			Reason:   fmt.Sprintf("FeatureServer error %d: %s", resp.Error.Code, resp.Error.Message),
		}
	}
	if resp.Features == nil {
		return nil, &feed.NormalizeError{SourceID: src.ID, Format: feed.FormatArcGIS, Reason: "missing features array"}
	}

	fields := fieldMapFor(src)
	wkid := 4326
	if resp.SpatialReference != nil {
		wkid = resp.SpatialReference.WKID
		if resp.SpatialReference.LatestWKID != 0 {
			wkid = resp.SpatialReference.LatestWKID
		}
	}

	alerts := make([]feed.Alert, 0, len(resp.Features))
	for _, f := range resp.Features {
		if alert, ok := n.normalizeFeature(f, src, fields, wkid); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

// fieldMapFor selects the attribute map for a source by subcategory.
func fieldMapFor(src feed.SourceDescriptor) FieldMap {
	if m, ok := fieldMaps[strings.ToLower(src.Subcategory)]; ok {
		return m
	}
	return defaultFieldMap
}

func (n *Normalizer) normalizeFeature(f arcFeature, src feed.SourceDescriptor, fields FieldMap, wkid int) (feed.Alert, bool) {
	nativeID := attributeID(f.Attributes)
	title := attributeString(f.Attributes, fields.Title)
	if nativeID == "" || title == "" {
		return feed.Alert{}, false
	}

	severity := attributeString(f.Attributes, fields.Severity)
	rank, mapped := severityTable[strings.ToLower(strings.TrimSpace(severity))]
	confidence := src.BaseConfidence()
	if !mapped {
		rank = feed.RankInformation
		confidence = confidence.CapAt(feed.ConfidenceLow)
	}

	updated := attributeTime(f.Attributes, fields.Timestamp)

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
		IssuedAt:     updated,
		UpdatedAt:    updated,
		Geometry:     reproject(f.Geometry, wkid),
	}
	return alert, true
}

// reproject converts a native-SR geometry to WGS84. Unknown spatial
// references or out-of-range results drop the geometry, not the feature.
func reproject(g *arcGeometry, wkid int) *feed.Geometry {
	if g == nil {
		return nil
	}

	convert, ok := converterFor(wkid)
	if !ok {
		return nil
	}

	switch {
	case g.X != nil && g.Y != nil:
		pos := convert(*g.X, *g.Y)
		out := feed.NewPoint(pos.Lon, pos.Lat)
		if !out.Valid() {
			return nil
		}
		return out
	case len(g.Paths) > 0:
		line := convertPath(g.Paths[0], convert)
		if line == nil {
			return nil
		}
		out := &feed.Geometry{Type: feed.GeometryLine, Line: line}
		if !out.Valid() {
			return nil
		}
		return out
	case len(g.Rings) > 0:
		rings := make([][]feed.Position, 0, len(g.Rings))
		for _, ring := range g.Rings {
			converted := convertPath(ring, convert)
			if converted == nil {
				return nil
			}
			rings = append(rings, converted)
		}
		out := &feed.Geometry{Type: feed.GeometryPolygon, Rings: rings}
		if !out.Valid() {
			return nil
		}
		return out
	}
	return nil
}

func convertPath(path [][]float64, convert func(x, y float64) feed.Position) []feed.Position {
	out := make([]feed.Position, 0, len(path))
	for _, vertex := range path {
		if len(vertex) < 2 {
			return nil
		}
		out = append(out, convert(vertex[0], vertex[1]))
	}
	return out
}

func converterFor(wkid int) (func(x, y float64) feed.Position, bool) {
	switch wkid {
	case 4326:
		return func(x, y float64) feed.Position {
			return feed.Position{Lon: x, Lat: y}
		}, true
	case 3857, 102100:
		return webMercatorToWGS84, true
	}
	return nil, false
}

// webMercatorToWGS84 inverts the spherical Web Mercator projection.
func webMercatorToWGS84(x, y float64) feed.Position {
	lon := x / earthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return feed.Position{Lon: lon, Lat: lat}
}

func attributeID(attrs map[string]interface{}) string {
	for _, key := range idAttributes {
		if v, ok := attrs[key]; ok {
			switch id := v.(type) {
			case string:
				if id != "" {
					return id
				}
			case float64:
				return fmt.Sprintf("%.0f", id)
			}
		}
	}
	return ""
}

func attributeString(attrs map[string]interface{}, key string) string {
	if v, ok := attrs[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// attributeTime reads an epoch-millisecond timestamp attribute.
func attributeTime(attrs map[string]interface{}, key string) time.Time {
	v, ok := attrs[key]
	if !ok {
		return time.Time{}
	}
	ms, ok := v.(float64)
	if !ok || ms <= 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(ms)*int64(time.Millisecond)).UTC()
}
