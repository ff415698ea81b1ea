package feed

import "fmt"

// The pipeline's error taxonomy. All three are source-scoped and non-fatal
// to an aggregation cycle: a failing source is recorded and excluded while
// the rest of the cycle proceeds.

// FetchError reports that a source's payload could not be retrieved:
// network failure, non-2xx status, or timeout.
type FetchError struct {
	SourceID string
	Status   int
	Reason   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.SourceID, e.Status, e.Reason)
	}
	return fmt.Sprintf("fetch %s: %s", e.SourceID, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NormalizeError reports that a payload does not parse as its declared
// format. Record-level faults never produce a NormalizeError; only
// whole-payload syntax failures do.
type NormalizeError struct {
	SourceID string
	Format   StreamFormat
	Reason   string
	Err      error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("normalize %s as %s: %s", e.SourceID, e.Format, e.Reason)
}

func (e *NormalizeError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports a descriptor whose stream format has no
// registered normalizer. Raised at selection time, never mid-fetch.
type UnsupportedFormatError struct {
	SourceID string
	Format   StreamFormat
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("source %s: no normalizer for format %q", e.SourceID, e.Format)
}
