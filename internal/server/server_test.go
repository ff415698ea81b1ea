package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/assembler"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/cache"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/fetcher"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/normalizer"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/pipeline"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/reconciler"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/registry"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

const fixtureGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"id": "rfs-101",
			"properties": {
				"title": "Grass fire near Dubbo",
				"severity": "Watch and Act",
				"updated": "2025-11-02T03:30:00Z"
			},
			"geometry": {"type": "Point", "coordinates": [148.601, -32.251]}
		},
		{
			"id": "rfs-102",
			"properties": {
				"title": "Bushfire at Lithgow",
				"severity": "Advice",
				"updated": "2025-11-02T02:45:00Z"
			},
			"geometry": {"type": "Point", "coordinates": [150.151, -33.481]}
		}
	]
}`

const fixtureCAP = `<?xml version="1.0" encoding="UTF-8"?>
<alert xmlns="urn:oasis:names:tc:emergency:cap:1.2">
	<identifier>vic-ses-2025-881</identifier>
	<sender>ses.vic.gov.au</sender>
	<sent>2025-11-02T14:00:00+11:00</sent>
	<status>Actual</status>
	<msgType>Alert</msgType>
	<info>
		<event>Riverine Flood</event>
		<urgency>Expected</urgency>
		<severity>Severe</severity>
		<certainty>Likely</certainty>
		<effective>2025-11-02T14:00:00+11:00</effective>
		<expires>2025-11-03T14:00:00+11:00</expires>
		<headline>Moderate flood warning for the Goulburn River</headline>
		<area>
			<areaDesc>Goulburn River</areaDesc>
			<polygon>not,really a,polygon at,all</polygon>
		</area>
	</info>
</alert>`

type failingProvider struct{}

func (failingProvider) ListSources(context.Context, registry.Filter) ([]feed.SourceDescriptor, error) {
	return nil, registry.ErrUnavailable
}

func descriptor(id string, category feed.Category, jurisdiction feed.Jurisdiction, u string, format feed.StreamFormat) feed.SourceDescriptor {
	return feed.SourceDescriptor{
		ID:              id,
		Name:            id,
		Category:        category,
		Jurisdiction:    jurisdiction,
		URL:             u,
		Format:          format,
		Access:          feed.AccessOpen,
		CertainlyOpen:   true,
		MachineReadable: true,
	}
}

// newTestServer wires the real fetcher, normalizer table and reconciler over
// httptest upstreams, with a fixed clock.
func newTestServer(t *testing.T, sources []feed.SourceDescriptor, now time.Time) *Server {
	t.Helper()

	provider, err := registry.NewStaticProvider(sources, normalizer.NewTable())
	require.NoError(t, err)

	log := testLogger()
	orchestrator := pipeline.New(
		fetcher.New(2*time.Second, log),
		normalizer.NewTable(),
		cache.Disabled{},
		4,
		5*time.Second,
		log,
	)

	srv := New(provider, orchestrator, reconciler.DefaultConfig(), log)
	srv.SetClock(func() time.Time { return now })
	return srv
}

func TestHandleAlerts(t *testing.T) {
	now := time.Date(2025, 11, 2, 4, 0, 0, 0, time.UTC)

	t.Run("aggregates mixed sources and degrades on partial failure", func(t *testing.T) {
		geojsonUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/geo+json")
			_, _ = w.Write([]byte(fixtureGeoJSON))
		}))
		defer geojsonUpstream.Close()

		capUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/cap+xml")
			_, _ = w.Write([]byte(fixtureCAP))
		}))
		defer capUpstream.Close()

		arcgisUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "service down", http.StatusInternalServerError)
		}))
		defer arcgisUpstream.Close()

		srv := newTestServer(t, []feed.SourceDescriptor{
			descriptor("nsw-rfs-majorincidents", feed.CategoryFire, feed.JurisdictionNSW, geojsonUpstream.URL, feed.FormatGeoJSON),
			descriptor("vic-ses-cap", feed.CategoryFlood, feed.JurisdictionVIC, capUpstream.URL, feed.FormatCAP),
			descriptor("qfes-arcgis", feed.CategoryFire, feed.JurisdictionQLD, arcgisUpstream.URL, feed.FormatArcGIS),
		}, now)

		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var collection assembler.FeatureCollection
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &collection))

		assert.Equal(t, "FeatureCollection", collection.Type)
		require.Len(t, collection.Features, 3)
		assert.Equal(t, 3, collection.Metadata.AlertCount)
		assert.Equal(t, 3, collection.Metadata.SourcesAttempted)
		assert.True(t, collection.Metadata.Stale)
		assert.Contains(t, collection.Metadata.Error, "qfes-arcgis")

		// Rank ordering: the two Watch and Act alerts precede the Advice one,
		// newest first within the same rank.
		assert.Equal(t, feed.RankWatchAndAct, collection.Features[0].Properties.SeverityRank)
		assert.Equal(t, feed.RankWatchAndAct, collection.Features[1].Properties.SeverityRank)
		assert.Equal(t, feed.RankAdvice, collection.Features[2].Properties.SeverityRank)

		// The CAP alert's polygon was malformed, so it carries no geometry.
		for _, f := range collection.Features {
			if f.Properties.SourceID == "vic-ses-cap" {
				assert.Nil(t, f.Geometry)
				assert.Equal(t, feed.ConfidenceHigh, f.Properties.Confidence)
			}
		}
	})

	t.Run("registry failure is cycle-fatal", func(t *testing.T) {
		log := testLogger()
		orchestrator := pipeline.New(fetcher.New(time.Second, log), normalizer.NewTable(), cache.Disabled{}, 1, time.Second, log)
		srv := New(failingProvider{}, orchestrator, reconciler.DefaultConfig(), log)

		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.JSONEq(t, `{"error": "source registry unavailable"}`, rec.Body.String())
	})

	t.Run("empty registry yields an empty collection", func(t *testing.T) {
		srv := newTestServer(t, nil, now)

		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var collection assembler.FeatureCollection
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &collection))
		assert.Empty(t, collection.Features)
		assert.False(t, collection.Metadata.Stale)
	})

	t.Run("query filters narrow the polled sources", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(fixtureGeoJSON))
		}))
		defer upstream.Close()

		srv := newTestServer(t, []feed.SourceDescriptor{
			descriptor("nsw-rfs-majorincidents", feed.CategoryFire, feed.JurisdictionNSW, upstream.URL, feed.FormatGeoJSON),
			descriptor("vic-ses-cap", feed.CategoryFlood, feed.JurisdictionVIC, upstream.URL, feed.FormatCAP),
		}, now)

		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alerts?category=Fire", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var collection assembler.FeatureCollection
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &collection))
		assert.Equal(t, 1, collection.Metadata.SourcesAttempted)
		assert.Len(t, collection.Features, 2)
	})
}

func TestHandleSources(t *testing.T) {
	srv := newTestServer(t, []feed.SourceDescriptor{
		descriptor("nsw-rfs-majorincidents", feed.CategoryFire, feed.JurisdictionNSW, "https://example.test/feed", feed.FormatGeoJSON),
	}, time.Now())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sources []feed.SourceDescriptor `json:"sources"`
		Count   int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "nsw-rfs-majorincidents", body.Sources[0].ID)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, nil, time.Now())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestFilterFromQuery(t *testing.T) {
	request := func(rawQuery string) *http.Request {
		return &http.Request{URL: &url.URL{RawQuery: rawQuery}}
	}

	t.Run("empty query matches everything", func(t *testing.T) {
		filter := filterFromQuery(request(""))
		assert.Empty(t, filter.Category)
		assert.Empty(t, filter.Jurisdiction)
		assert.Nil(t, filter.MachineReadable)
		assert.Empty(t, filter.Tags)
	})

	t.Run("parses all parameters", func(t *testing.T) {
		filter := filterFromQuery(request("category=Fire&state=NSW&machine_readable=true&tags=official,%20realtime"))
		assert.Equal(t, feed.CategoryFire, filter.Category)
		assert.Equal(t, feed.JurisdictionNSW, filter.Jurisdiction)
		require.NotNil(t, filter.MachineReadable)
		assert.True(t, *filter.MachineReadable)
		assert.Equal(t, []string{"official", "realtime"}, filter.Tags)
	})

	t.Run("machine_readable false", func(t *testing.T) {
		filter := filterFromQuery(request("machine_readable=false"))
		require.NotNil(t, filter.MachineReadable)
		assert.False(t, *filter.MachineReadable)
	})
}
