// Package capxml normalizes Common Alerting Protocol (CAP 1.2) XML feeds.
package capxml

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
)

// severityTable maps the CAP <severity> value onto the canonical rank.
// Unmapped values fall through to Information with confidence capped low.
var severityTable = map[string]feed.SeverityRank{
	"extreme":  feed.RankEmergency,
	"severe":   feed.RankWatchAndAct,
	"moderate": feed.RankAdvice,
	"minor":    feed.RankInformation,
	"unknown":  feed.RankInformation,
}

// certaintyTable maps the CAP <certainty> value onto a confidence ceiling.
// "Unknown" certainty caps confidence at low regardless of registry trust.
var certaintyTable = map[string]feed.Confidence{
	"observed": feed.ConfidenceHigh,
	"likely":   feed.ConfidenceHigh,
	"possible": feed.ConfidenceMedium,
	"unlikely": feed.ConfidenceLow,
	"unknown":  feed.ConfidenceLow,
}

// pastUrgency demotes alerts describing concluded events.
var pastUrgency = map[string]bool{"past": true}

// Normalizer converts CAP alert documents into canonical alerts.
type Normalizer struct{}

// New returns a CAP normalizer.
func New() *Normalizer { return &Normalizer{} }

type capAlert struct {
	Identifier string    `xml:"identifier"`
	Sender     string    `xml:"sender"`
	Sent       string    `xml:"sent"`
	Status     string    `xml:"status"`
	MsgType    string    `xml:"msgType"`
	Infos      []capInfo `xml:"info"`
}

type capInfo struct {
	Event       string    `xml:"event"`
	Urgency     string    `xml:"urgency"`
	Severity    string    `xml:"severity"`
	Certainty   string    `xml:"certainty"`
	Effective   string    `xml:"effective"`
	Expires     string    `xml:"expires"`
	Headline    string    `xml:"headline"`
	Description string    `xml:"description"`
	Web         string    `xml:"web"`
	Areas       []capArea `xml:"area"`
}

type capArea struct {
	Desc     string   `xml:"areaDesc"`
	Polygons []string `xml:"polygon"`
	Circles  []string `xml:"circle"`
}

// Normalize parses one or more <alert> blocks. Non-XML bytes or a document
// with no <alert> element fail the whole source; individual alerts missing
// an identifier or info block are dropped.
func (n *Normalizer) Normalize(payload feed.RawPayload, src feed.SourceDescriptor) ([]feed.Alert, error) {
	capAlerts, err := decodeAlerts(payload.Body)
	if err != nil {
		return nil, &feed.NormalizeError{SourceID: src.ID, Format: feed.FormatCAP, Reason: "invalid XML", Err: err}
	}
	if len(capAlerts) == 0 {
		return nil, &feed.NormalizeError{SourceID: src.ID, Format: feed.FormatCAP, Reason: "no <alert> blocks in document"}
	}

	alerts := make([]feed.Alert, 0, len(capAlerts))
	for _, ca := range capAlerts {
		if alert, ok := n.normalizeAlert(ca, src); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

// decodeAlerts streams the document and decodes every <alert> element,
// whether the root itself is an alert or a wrapper around several.
func decodeAlerts(body []byte) ([]capAlert, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var out []capAlert
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "alert" {
			continue
		}
		var ca capAlert
		if err := dec.DecodeElement(&ca, &se); err != nil {
			return nil, err
		}
		out = append(out, ca)
	}
}

func (n *Normalizer) normalizeAlert(ca capAlert, src feed.SourceDescriptor) (feed.Alert, bool) {
	if ca.Identifier == "" || len(ca.Infos) == 0 {
		return feed.Alert{}, false
	}
	info := ca.Infos[0]

	rank, mapped := severityTable[strings.ToLower(info.Severity)]
	confidence := src.BaseConfidence()
	if !mapped {
		rank = feed.RankInformation
		confidence = confidence.CapAt(feed.ConfidenceLow)
	}
	if ceiling, ok := certaintyTable[strings.ToLower(info.Certainty)]; ok {
		confidence = confidence.CapAt(ceiling)
	} else {
		confidence = confidence.CapAt(feed.ConfidenceLow)
	}
	if pastUrgency[strings.ToLower(info.Urgency)] && rank < feed.RankInformation {
		rank = feed.RankInformation
	}

	issued := parseCAPTime(ca.Sent)
	updated := parseCAPTime(info.Effective)
	if updated.IsZero() {
		updated = issued
	}

	title := info.Headline
	if title == "" {
		title = info.Event
	}
	if title == "" {
		return feed.Alert{}, false
	}

	alert := feed.Alert{
		ID:           feed.AlertID(src.ID, ca.Identifier),
		SourceID:     src.ID,
		Category:     src.Category,
		Subcategory:  src.Subcategory,
		Tags:         append([]string(nil), src.Tags...),
		Jurisdiction: src.Jurisdiction,
		HazardType:   src.HazardType(),
		Severity:     info.Severity,
		SeverityRank: rank,
		Confidence:   confidence,
		Title:        title,
		Description:  info.Description,
		IssuedAt:     issued,
		UpdatedAt:    updated,
		SourceURL:    info.Web,
		Geometry:     areaGeometry(info.Areas),
	}

	if expires := parseCAPTime(info.Expires); !expires.IsZero() {
		alert.ExpiresAt = &expires
	}

	return alert, true
}

// areaGeometry returns the first parseable geometry among the alert's
// areas. Polygons win over circles; each candidate is parsed independently
// so one malformed polygon never discards the alert, only its geometry.
func areaGeometry(areas []capArea) *feed.Geometry {
	for _, area := range areas {
		for _, poly := range area.Polygons {
			if g := parsePolygon(poly); g != nil {
				return g
			}
		}
	}
	for _, area := range areas {
		for _, circle := range area.Circles {
			if g := parseCircle(circle); g != nil {
				return g
			}
		}
	}
	return nil
}

// parsePolygon decodes the CAP polygon encoding: whitespace-separated
// "lat,lon" pairs forming a closed ring.
func parsePolygon(raw string) *feed.Geometry {
	pairs := strings.Fields(raw)
	if len(pairs) < 3 {
		return nil
	}
	ring := make([]feed.Position, 0, len(pairs))
	for _, pair := range pairs {
		pos, ok := parseLatLon(pair)
		if !ok {
			return nil
		}
		ring = append(ring, pos)
	}
	g := &feed.Geometry{Type: feed.GeometryPolygon, Rings: [][]feed.Position{ring}}
	if !g.Valid() {
		return nil
	}
	return g
}

// parseCircle decodes "lat,lon radiusKm" into a point at the centre.
func parseCircle(raw string) *feed.Geometry {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return nil
	}
	pos, ok := parseLatLon(fields[0])
	if !ok {
		return nil
	}
	if _, err := strconv.ParseFloat(fields[1], 64); err != nil {
		return nil
	}
	g := feed.NewPoint(pos.Lon, pos.Lat)
	if !g.Valid() {
		return nil
	}
	return g
}

func parseLatLon(pair string) (feed.Position, bool) {
	parts := strings.Split(pair, ",")
	if len(parts) != 2 {
		return feed.Position{}, false
	}
	lat, err1 := strconv.ParseFloat(parts[0], 64)
	lon, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return feed.Position{}, false
	}
	return feed.Position{Lon: lon, Lat: lat}, true
}

func parseCAPTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
