package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlertID(t *testing.T) {
	t.Run("is deterministic for the same source and native id", func(t *testing.T) {
		first := AlertID("nsw-rfs", "incident-42")
		second := AlertID("nsw-rfs", "incident-42")

		assert.NotEmpty(t, first)
		assert.Equal(t, first, second)
	})

	t.Run("differs across sources", func(t *testing.T) {
		assert.NotEqual(t, AlertID("nsw-rfs", "incident-42"), AlertID("vic-cfa", "incident-42"))
	})

	t.Run("differs across native ids", func(t *testing.T) {
		assert.NotEqual(t, AlertID("nsw-rfs", "incident-42"), AlertID("nsw-rfs", "incident-43"))
	})
}

func TestSeverityRankValid(t *testing.T) {
	assert.True(t, RankEmergency.Valid())
	assert.True(t, RankInformation.Valid())
	assert.False(t, SeverityRank(0).Valid())
	assert.False(t, SeverityRank(5).Valid())
}

func TestConfidence(t *testing.T) {
	t.Run("ordering", func(t *testing.T) {
		assert.True(t, ConfidenceHigh.MoreConfidentThan(ConfidenceMedium))
		assert.True(t, ConfidenceMedium.MoreConfidentThan(ConfidenceLow))
		assert.True(t, ConfidenceLow.MoreConfidentThan(ConfidenceUnverified))
		assert.False(t, ConfidenceLow.MoreConfidentThan(ConfidenceHigh))
	})

	t.Run("cap lowers but never raises", func(t *testing.T) {
		assert.Equal(t, ConfidenceLow, ConfidenceHigh.CapAt(ConfidenceLow))
		assert.Equal(t, ConfidenceUnverified, ConfidenceUnverified.CapAt(ConfidenceLow))
		assert.Equal(t, ConfidenceMedium, ConfidenceMedium.CapAt(ConfidenceMedium))
	})
}

func TestSourceDescriptorHazardType(t *testing.T) {
	t.Run("prefers subcategory", func(t *testing.T) {
		src := SourceDescriptor{Category: CategoryFire, Subcategory: "Bushfire"}
		assert.Equal(t, "bushfire", src.HazardType())
	})

	t.Run("falls back to category", func(t *testing.T) {
		src := SourceDescriptor{Category: CategoryFlood}
		assert.Equal(t, "flood", src.HazardType())
	})
}

func TestSourceDescriptorBaseConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, SourceDescriptor{CertainlyOpen: true, MachineReadable: true}.BaseConfidence())
	assert.Equal(t, ConfidenceMedium, SourceDescriptor{MachineReadable: true}.BaseConfidence())
	assert.Equal(t, ConfidenceLow, SourceDescriptor{CertainlyOpen: true}.BaseConfidence())
}
