// Package georss normalizes RSS 2.0 and Atom hazard feeds, including the
// GeoRSS-Simple point and line extensions.
package georss

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
)

// keywordRule infers a severity rank from title/category text when a feed
// carries no explicit severity field. Rules are checked in order; the first
// match wins.
type keywordRule struct {
	rank     feed.SeverityRank
	label    string
	keywords []string
}

var keywordRules = []keywordRule{
	{
		rank:     feed.RankEmergency,
		label:    "Emergency Warning",
		keywords: []string{"emergency warning", "evacuate immediately", "evacuation order"},
	},
	{
		rank:     feed.RankWatchAndAct,
		label:    "Watch and Act",
		keywords: []string{"watch and act", "severe", "major flood"},
	},
	{
		rank:     feed.RankAdvice,
		label:    "Advice",
		keywords: []string{"advice", "minor flood", "community update"},
	},
	{
		rank:     feed.RankInformation,
		label:    "Information",
		keywords: []string{"all clear", "downgraded", "final update"},
	},
}

var timeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

// Normalizer converts RSS/GeoRSS and Atom payloads into canonical alerts.
type Normalizer struct{}

// New returns an RSS/GeoRSS normalizer.
func New() *Normalizer { return &Normalizer{} }

type document struct {
	XMLName xml.Name
	Channel *channel `xml:"channel"`
	Entries []entry  `xml:"entry"`
}

type channel struct {
	Items []item `xml:"item"`
}

type item struct {
	Title       string   `xml:"title"`
	Description string   `xml:"description"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Categories  []string `xml:"category"`
	Point       string   `xml:"point"`
	Line        string   `xml:"line"`
}

type entry struct {
	Title   string   `xml:"title"`
	Summary string   `xml:"summary"`
	ID      string   `xml:"id"`
	Updated string   `xml:"updated"`
	Links   []link   `xml:"link"`
	Point   string   `xml:"point"`
	Line    string   `xml:"line"`
	Tags    []string `xml:"category"`
}

type link struct {
	Href string `xml:"href,attr"`
}

// Normalize parses an RSS channel or Atom feed. Items without a stable
// identity are dropped individually; non-XML bytes fail the whole source.
func (n *Normalizer) Normalize(payload feed.RawPayload, src feed.SourceDescriptor) ([]feed.Alert, error) {
	var doc document
	if err := xml.Unmarshal(payload.Body, &doc); err != nil {
		return nil, &feed.NormalizeError{SourceID: src.ID, Format: feed.FormatRSS, Reason: "invalid XML", Err: err}
	}

	var alerts []feed.Alert
	switch {
	case doc.Channel != nil:
		alerts = make([]feed.Alert, 0, len(doc.Channel.Items))
		for _, it := range doc.Channel.Items {
			if alert, ok := n.normalizeItem(it, src); ok {
				alerts = append(alerts, alert)
			}
		}
	case doc.XMLName.Local == "feed":
		alerts = make([]feed.Alert, 0, len(doc.Entries))
		for _, e := range doc.Entries {
			if alert, ok := n.normalizeEntry(e, src); ok {
				alerts = append(alerts, alert)
			}
		}
	default:
		return nil, &feed.NormalizeError{
			SourceID: src.ID,
			Format:   feed.FormatRSS,
			Reason:   "document is neither an RSS channel nor an Atom feed",
		}
	}

	return alerts, nil
}

func (n *Normalizer) normalizeItem(it item, src feed.SourceDescriptor) (feed.Alert, bool) {
	nativeID := it.GUID
	if nativeID == "" {
		nativeID = it.Link
	}
	if nativeID == "" || it.Title == "" {
		return feed.Alert{}, false
	}

	rank, label := inferSeverity(it.Title, it.Categories)
	issued := parseTime(it.PubDate)

	alert := feed.Alert{
		ID:           feed.AlertID(src.ID, nativeID),
		SourceID:     src.ID,
		Category:     src.Category,
		Subcategory:  src.Subcategory,
		Tags:         mergeTags(src.Tags, it.Categories),
		Jurisdiction: src.Jurisdiction,
		HazardType:   src.HazardType(),
		Severity:     label,
		SeverityRank: rank,
		Confidence:   src.BaseConfidence().CapAt(feed.ConfidenceMedium),
		Title:        it.Title,
		Description:  it.Description,
		IssuedAt:     issued,
		UpdatedAt:    issued,
		SourceURL:    it.Link,
		Geometry:     parseGeoRSS(it.Point, it.Line),
	}
	return alert, true
}

func (n *Normalizer) normalizeEntry(e entry, src feed.SourceDescriptor) (feed.Alert, bool) {
	nativeID := e.ID
	var href string
	if len(e.Links) > 0 {
		href = e.Links[0].Href
	}
	if nativeID == "" {
		nativeID = href
	}
	if nativeID == "" || e.Title == "" {
		return feed.Alert{}, false
	}

	rank, label := inferSeverity(e.Title, e.Tags)
	updated := parseTime(e.Updated)

	alert := feed.Alert{
		ID:           feed.AlertID(src.ID, nativeID),
		SourceID:     src.ID,
		Category:     src.Category,
		Subcategory:  src.Subcategory,
		Tags:         mergeTags(src.Tags, e.Tags),
		Jurisdiction: src.Jurisdiction,
		HazardType:   src.HazardType(),
		Severity:     label,
		SeverityRank: rank,
		Confidence:   src.BaseConfidence().CapAt(feed.ConfidenceMedium),
		Title:        e.Title,
		Description:  e.Summary,
		IssuedAt:     updated,
		UpdatedAt:    updated,
		SourceURL:    href,
		Geometry:     parseGeoRSS(e.Point, e.Line),
	}
	return alert, true
}

// inferSeverity applies the keyword rules over title and category text.
// Feeds in this format have no explicit severity field, so an unmatched
// item defaults to Advice.
func inferSeverity(title string, categories []string) (feed.SeverityRank, string) {
	haystack := strings.ToLower(title + " " + strings.Join(categories, " "))
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.rank, rule.label
			}
		}
	}
	return feed.RankAdvice, ""
}

// parseGeoRSS decodes GeoRSS-Simple point/line text. GeoRSS orders
// coordinates latitude first.
func parseGeoRSS(point, line string) *feed.Geometry {
	if point != "" {
		fields := strings.Fields(point)
		if len(fields) != 2 {
			return nil
		}
		lat, err1 := strconv.ParseFloat(fields[0], 64)
		lon, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			return nil
		}
		g := feed.NewPoint(lon, lat)
		if !g.Valid() {
			return nil
		}
		return g
	}

	if line != "" {
		fields := strings.Fields(line)
		if len(fields) < 4 || len(fields)%2 != 0 {
			return nil
		}
		positions := make([]feed.Position, 0, len(fields)/2)
		for i := 0; i < len(fields); i += 2 {
			lat, err1 := strconv.ParseFloat(fields[i], 64)
			lon, err2 := strconv.ParseFloat(fields[i+1], 64)
			if err1 != nil || err2 != nil {
				return nil
			}
			positions = append(positions, feed.Position{Lon: lon, Lat: lat})
		}
		g := &feed.Geometry{Type: feed.GeometryLine, Line: positions}
		if !g.Valid() {
			return nil
		}
		return g
	}

	return nil
}

func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
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

func mergeTags(base, extra []string) []string {
	out := append([]string(nil), base...)
	for _, tag := range extra {
		if tag == "" {
			continue
		}
		found := false
		for _, existing := range out {
			if existing == tag {
				found = true
				break
			}
		}
		if !found {
			out = append(out, tag)
		}
	}
	return out
}
