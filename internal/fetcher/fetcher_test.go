package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testSource(url string) feed.SourceDescriptor {
	return feed.SourceDescriptor{
		ID:           "nsw-rfs-majorincidents",
		Name:         "NSW RFS Major Incidents",
		Category:     feed.CategoryFire,
		Jurisdiction: feed.JurisdictionNSW,
		URL:          url,
		Format:       feed.FormatGeoJSON,
		Access:       feed.AccessOpen,
	}
}

func TestFetch(t *testing.T) {
	t.Run("returns the payload on a 200 response", func(t *testing.T) {
		var gotAccept, gotAgent string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAccept = r.Header.Get("Accept")
			gotAgent = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "application/geo+json")
			_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
		}))
		defer ts.Close()

		f := New(5*time.Second, testLogger())
		payload, err := f.Fetch(context.Background(), testSource(ts.URL))
		require.NoError(t, err)

		assert.Equal(t, 200, payload.Status)
		assert.Equal(t, "application/geo+json", payload.ContentType)
		assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(payload.Body))
		assert.Contains(t, gotAccept, "application/geo+json")
		assert.Equal(t, "tacmap-alert-pipeline/2.0", gotAgent)
	})

	t.Run("non-2xx status becomes a FetchError with the status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream broken", http.StatusInternalServerError)
		}))
		defer ts.Close()

		f := New(5*time.Second, testLogger())
		_, err := f.Fetch(context.Background(), testSource(ts.URL))

		var fetchErr *feed.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusInternalServerError, fetchErr.Status)
		assert.Equal(t, "nsw-rfs-majorincidents", fetchErr.SourceID)
	})

	t.Run("slow upstream times out", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer ts.Close()
		defer close(release)

		f := New(50*time.Millisecond, testLogger())
		_, err := f.Fetch(context.Background(), testSource(ts.URL))

		var fetchErr *feed.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, "timeout", fetchErr.Reason)
	})

	t.Run("cancelled context cuts the fetch short", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer ts.Close()
		defer close(release)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		f := New(5*time.Second, testLogger())
		_, err := f.Fetch(ctx, testSource(ts.URL))

		var fetchErr *feed.FetchError
		assert.ErrorAs(t, err, &fetchErr)
	})

	t.Run("follows redirects", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/old" {
				http.Redirect(w, r, "/new", http.StatusMovedPermanently)
				return
			}
			_, _ = w.Write([]byte("moved payload"))
		}))
		defer ts.Close()

		f := New(5*time.Second, testLogger())
		src := testSource(ts.URL + "/old")
		payload, err := f.Fetch(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, "moved payload", string(payload.Body))
	})

	t.Run("unreachable host is a FetchError", func(t *testing.T) {
		f := New(time.Second, testLogger())
		_, err := f.Fetch(context.Background(), testSource("http://127.0.0.1:1"))

		var fetchErr *feed.FetchError
		assert.ErrorAs(t, err, &fetchErr)
	})
}

func TestAcceptHeader(t *testing.T) {
	assert.Contains(t, acceptHeader(feed.FormatRSS), "application/rss+xml")
	assert.Contains(t, acceptHeader(feed.FormatCAP), "application/cap+xml")
	assert.Contains(t, acceptHeader(feed.FormatArcGIS), "application/json")
	assert.Equal(t, "*/*", acceptHeader(feed.StreamFormat("unknown")))
}
