package feed

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SeverityRank orders alert urgency. Lower sorts first.
type SeverityRank int

const (
	// RankEmergency is the highest urgency (Emergency Warning).
	RankEmergency SeverityRank = 1
	// RankWatchAndAct covers severe conditions requiring action.
	RankWatchAndAct SeverityRank = 2
	// RankAdvice covers advisory-level alerts.
	RankAdvice SeverityRank = 3
	// RankInformation is the lowest urgency.
	RankInformation SeverityRank = 4
)

// Valid reports whether the rank is one of the four defined levels.
func (r SeverityRank) Valid() bool {
	return r >= RankEmergency && r <= RankInformation
}

// Confidence is the pipeline's trust label for an alert's accuracy.
type Confidence string

const (
	ConfidenceHigh       Confidence = "high"
	ConfidenceMedium     Confidence = "medium"
	ConfidenceLow        Confidence = "low"
	ConfidenceUnverified Confidence = "unverified"
)

// confidenceOrder ranks confidence for tie-breaks, highest first.
var confidenceOrder = map[Confidence]int{
	ConfidenceHigh:       0,
	ConfidenceMedium:     1,
	ConfidenceLow:        2,
	ConfidenceUnverified: 3,
}

// MoreConfidentThan reports whether c ranks strictly above other.
func (c Confidence) MoreConfidentThan(other Confidence) bool {
	return confidenceOrder[c] < confidenceOrder[other]
}

// CapAt returns the weaker of c and limit. Used when a source's certainty
// forces a ceiling on how much we trust the record.
func (c Confidence) CapAt(limit Confidence) Confidence {
	if confidenceOrder[c] < confidenceOrder[limit] {
		return limit
	}
	return c
}

// Alert is the canonical alert record every normalizer emits.
// Alerts are created fresh each poll cycle and never mutated afterwards.
type Alert struct {
	ID           string       `json:"id"`
	SourceID     string       `json:"sourceId"`
	Category     Category     `json:"category"`
	Subcategory  string       `json:"subcategory,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Jurisdiction Jurisdiction `json:"jurisdiction"`
	HazardType   string       `json:"hazardType"`

	// Severity is the source-native label; SeverityRank is its place in the
	// canonical 1..4 ordering.
	Severity     string       `json:"severity,omitempty"`
	SeverityRank SeverityRank `json:"severityRank"`
	Confidence   Confidence   `json:"confidence"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	IssuedAt  time.Time  `json:"issuedAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	SourceURL string    `json:"sourceUrl,omitempty"`
	Geometry  *Geometry `json:"geometry,omitempty"`

	// MergedSourceIDs records the source ids of alerts the reconciler
	// suppressed into this one, so duplicate suppression stays auditable.
	MergedSourceIDs []string `json:"mergedSourceIds,omitempty"`
}

// alertNamespace seeds deterministic alert IDs. Re-polling the same upstream
// alert must yield the same identifier.
var alertNamespace = uuid.MustParse("7b7cdd7e-3c91-49a8-9d5e-1f2a64b1f0aa")

// AlertID derives the canonical identifier for an upstream alert.
func AlertID(sourceID, nativeID string) string {
	return uuid.NewSHA1(alertNamespace, []byte(fmt.Sprintf("%s/%s", sourceID, nativeID))).String()
}
