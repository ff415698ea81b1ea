package normalizer

import (
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/normalizer/arcgis"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/normalizer/capxml"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/normalizer/geojson"
	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/normalizer/georss"
)

// Normalizer converts one source's raw payload into canonical alerts.
// Implementations are pure: no I/O, no shared state, deterministic for a
// given payload and descriptor. A whole-payload syntax failure yields a
// *feed.NormalizeError; record-level faults drop the record only.
type Normalizer interface {
	Normalize(payload feed.RawPayload, src feed.SourceDescriptor) ([]feed.Alert, error)
}

// Table is the closed dispatch from stream format to normalizer. A format
// absent from the table is unsupported, which source selection rejects
// before any fetch happens.
type Table map[feed.StreamFormat]Normalizer

// NewTable builds the dispatch table over every supported format.
func NewTable() Table {
	return Table{
		feed.FormatGeoJSON: geojson.New(),
		feed.FormatRSS:     georss.New(),
		feed.FormatCAP:     capxml.New(),
		feed.FormatArcGIS:  arcgis.New(),
	}
}

// Lookup returns the normalizer for a format, or an UnsupportedFormatError
// naming the offending source.
func (t Table) Lookup(src feed.SourceDescriptor) (Normalizer, error) {
	n, ok := t[src.Format]
	if !ok {
		return nil, &feed.UnsupportedFormatError{SourceID: src.ID, Format: src.Format}
	}
	return n, nil
}

// Supports reports whether the table can dispatch the given format.
func (t Table) Supports(format feed.StreamFormat) bool {
	_, ok := t[format]
	return ok
}
