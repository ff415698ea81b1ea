package geojson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
)

func testSource() feed.SourceDescriptor {
	return feed.SourceDescriptor{
		ID:              "nsw-rfs-majorincidents",
		Name:            "NSW RFS Major Incidents",
		Category:        feed.CategoryFire,
		Subcategory:     "Bushfire",
		Jurisdiction:    feed.JurisdictionNSW,
		URL:             "https://www.rfs.nsw.gov.au/feeds/majorIncidents.json",
		Format:          feed.FormatGeoJSON,
		Access:          feed.AccessOpen,
		CertainlyOpen:   true,
		MachineReadable: true,
	}
}

const fixtureTwoFeatures = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {
				"guid": "https://incidents.example/1001",
				"title": "Grass fire near Dubbo",
				"description": "Fire burning north of the highway.",
				"category": "Emergency Warning",
				"pubDate": "2025-11-02T03:10:00Z",
				"link": "https://incidents.example/1001"
			},
			"geometry": {"type": "Point", "coordinates": [148.6, -32.2]}
		},
		{
			"type": "Feature",
			"properties": {
				"guid": "https://incidents.example/1002",
				"title": "Hazard reduction burn",
				"category": "Advice",
				"pubDate": "2025-11-02T01:00:00Z"
			},
			"geometry": {"type": "Polygon", "coordinates": [[[150.1, -33.9], [150.2, -33.9], [150.15, -33.8], [150.1, -33.9]]]}
		}
	]
}`

func payload(body string) feed.RawPayload {
	return feed.RawPayload{Body: []byte(body), ContentType: "application/json", Status: 200}
}

func TestNormalize(t *testing.T) {
	n := New()

	t.Run("maps features to canonical alerts", func(t *testing.T) {
		alerts, err := n.Normalize(payload(fixtureTwoFeatures), testSource())
		require.NoError(t, err)
		require.Len(t, alerts, 2)

		first := alerts[0]
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, "nsw-rfs-majorincidents", first.SourceID)
		assert.Equal(t, "Grass fire near Dubbo", first.Title)
		assert.Equal(t, feed.RankEmergency, first.SeverityRank)
		assert.Equal(t, feed.ConfidenceHigh, first.Confidence)
		assert.Equal(t, "bushfire", first.HazardType)
		require.NotNil(t, first.Geometry)
		assert.Equal(t, feed.GeometryPoint, first.Geometry.Type)

		second := alerts[1]
		assert.Equal(t, feed.RankAdvice, second.SeverityRank)
		require.NotNil(t, second.Geometry)
		assert.Equal(t, feed.GeometryPolygon, second.Geometry.Type)
	})

	t.Run("is idempotent on alert ids", func(t *testing.T) {
		first, err := n.Normalize(payload(fixtureTwoFeatures), testSource())
		require.NoError(t, err)
		second, err := n.Normalize(payload(fixtureTwoFeatures), testSource())
		require.NoError(t, err)

		require.Len(t, second, len(first))
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
		}
	})

	t.Run("drops features missing identity without failing the batch", func(t *testing.T) {
		body := `{
			"type": "FeatureCollection",
			"features": [
				{"type": "Feature", "properties": {"title": "No id here"}, "geometry": null},
				{"type": "Feature", "properties": {"guid": "x-1", "title": "Kept", "category": "Advice"}, "geometry": null}
			]
		}`
		alerts, err := n.Normalize(payload(body), testSource())
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, "Kept", alerts[0].Title)
	})

	t.Run("unmapped severity defaults to rank 4 with low confidence", func(t *testing.T) {
		body := `{
			"type": "FeatureCollection",
			"features": [
				{"type": "Feature", "properties": {"guid": "x-2", "title": "Odd level", "category": "Code Mauve"}, "geometry": null}
			]
		}`
		alerts, err := n.Normalize(payload(body), testSource())
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, feed.RankInformation, alerts[0].SeverityRank)
		assert.Equal(t, feed.ConfidenceLow, alerts[0].Confidence)
	})

	t.Run("drops geometry outside WGS84 bounds but keeps the alert", func(t *testing.T) {
		body := `{
			"type": "FeatureCollection",
			"features": [
				{"type": "Feature", "properties": {"guid": "x-3", "title": "Bad coords", "category": "Advice"}, "geometry": {"type": "Point", "coordinates": [512.0, -33.8]}}
			]
		}`
		alerts, err := n.Normalize(payload(body), testSource())
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Nil(t, alerts[0].Geometry)
	})

	t.Run("invalid JSON fails the whole source", func(t *testing.T) {
		_, err := n.Normalize(payload(`{"type": "FeatureCollec`), testSource())
		var normErr *feed.NormalizeError
		require.ErrorAs(t, err, &normErr)
		assert.Equal(t, "nsw-rfs-majorincidents", normErr.SourceID)
	})

	t.Run("non-FeatureCollection fails the whole source", func(t *testing.T) {
		_, err := n.Normalize(payload(`{"type": "Feature"}`), testSource())
		var normErr *feed.NormalizeError
		assert.ErrorAs(t, err, &normErr)
	})
}
