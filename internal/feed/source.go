package feed

import "strings"

// Category classifies what kind of hazard a source publishes.
type Category string

const (
	CategoryAlerts         Category = "Alerts"
	CategoryFire           Category = "Fire"
	CategoryFlood          Category = "Flood"
	CategoryGround         Category = "Ground"
	CategoryCommunications Category = "Communications"
	CategoryHazards        Category = "Hazards"
	CategoryWeather        Category = "Weather"
	CategoryTransport      Category = "Transport"
	CategoryPolice         Category = "Police"
	CategoryAviation       Category = "Aviation"
	CategoryMarine         Category = "Marine"
)

// KnownCategories lists every category the registry may declare.
var KnownCategories = map[Category]bool{
	CategoryAlerts:         true,
	CategoryFire:           true,
	CategoryFlood:          true,
	CategoryGround:         true,
	CategoryCommunications: true,
	CategoryHazards:        true,
	CategoryWeather:        true,
	CategoryTransport:      true,
	CategoryPolice:         true,
	CategoryAviation:       true,
	CategoryMarine:         true,
}

// Jurisdiction identifies the Australian state/territory a source covers,
// or National for nationwide feeds.
type Jurisdiction string

const (
	JurisdictionACT      Jurisdiction = "ACT"
	JurisdictionNSW      Jurisdiction = "NSW"
	JurisdictionNT       Jurisdiction = "NT"
	JurisdictionQLD      Jurisdiction = "QLD"
	JurisdictionSA       Jurisdiction = "SA"
	JurisdictionTAS      Jurisdiction = "TAS"
	JurisdictionVIC      Jurisdiction = "VIC"
	JurisdictionWA       Jurisdiction = "WA"
	JurisdictionNational Jurisdiction = "National"
)

// KnownJurisdictions lists every jurisdiction the registry may declare.
var KnownJurisdictions = map[Jurisdiction]bool{
	JurisdictionACT:      true,
	JurisdictionNSW:      true,
	JurisdictionNT:       true,
	JurisdictionQLD:      true,
	JurisdictionSA:       true,
	JurisdictionTAS:      true,
	JurisdictionVIC:      true,
	JurisdictionWA:       true,
	JurisdictionNational: true,
}

// StreamFormat tags the wire format a source publishes.
type StreamFormat string

const (
	FormatGeoJSON StreamFormat = "geojson"
	FormatRSS     StreamFormat = "rss"
	FormatCAP     StreamFormat = "cap"
	FormatArcGIS  StreamFormat = "arcgis"
	FormatJSON    StreamFormat = "json"
	FormatRadio   StreamFormat = "radio"
)

// KnownFormats lists every format tag the registry may declare.
// Not every known format has a normalizer: json and radio sources are valid
// registry entries that the selection step excludes from polling.
var KnownFormats = map[StreamFormat]bool{
	FormatGeoJSON: true,
	FormatRSS:     true,
	FormatCAP:     true,
	FormatArcGIS:  true,
	FormatJSON:    true,
	FormatRadio:   true,
}

// AccessLevel declares how openly a source may be consumed.
type AccessLevel string

const (
	AccessOpen     AccessLevel = "Open"
	AccessPartial  AccessLevel = "Partial"
	AccessInternal AccessLevel = "Internal"
)

// SourceDescriptor is one registry record describing an upstream feed:
// where it lives, what it publishes, and how much we trust it.
// Descriptors are immutable for the duration of a poll cycle.
type SourceDescriptor struct {
	ID              string       `json:"id" yaml:"id"`
	Name            string       `json:"name" yaml:"name"`
	Category        Category     `json:"category" yaml:"category"`
	Subcategory     string       `json:"subcategory,omitempty" yaml:"subcategory"`
	Tags            []string     `json:"tags,omitempty" yaml:"tags"`
	Jurisdiction    Jurisdiction `json:"jurisdiction" yaml:"jurisdiction"`
	URL             string       `json:"url" yaml:"url"`
	Format          StreamFormat `json:"format" yaml:"format"`
	Access          AccessLevel  `json:"access" yaml:"access"`
	CertainlyOpen   bool         `json:"certainlyOpen" yaml:"certainly_open"`
	MachineReadable bool         `json:"machineReadable" yaml:"machine_readable"`
}

// HazardType derives the canonical hazard label for alerts from this source.
// The subcategory wins when set because it is the more specific of the two.
func (s SourceDescriptor) HazardType() string {
	if s.Subcategory != "" {
		return strings.ToLower(s.Subcategory)
	}
	return strings.ToLower(string(s.Category))
}

// BaseConfidence derives the starting trust level for alerts from this
// source's registry trust flags. Normalizers may lower it further from
// per-record certainty but never raise it above this.
func (s SourceDescriptor) BaseConfidence() Confidence {
	switch {
	case s.CertainlyOpen && s.MachineReadable:
		return ConfidenceHigh
	case s.MachineReadable:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// HasTag reports whether the descriptor carries the given tag.
func (s SourceDescriptor) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
