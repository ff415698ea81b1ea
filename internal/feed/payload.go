package feed

import "time"

// RawPayload is the transient result of one source fetch. It lives only for
// the duration of a poll cycle and is never persisted by the pipeline.
type RawPayload struct {
	Body        []byte
	ContentType string
	Status      int
	Latency     time.Duration

	// FromCache marks payloads served by the cache tier instead of a live
	// fetch.
	FromCache bool
}
