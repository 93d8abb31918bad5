// Package otel provides structured observability for pulse.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
// An optional RingBuffer keeps recent events in memory for the /api/events
// endpoint.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an observability event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Ingestion events
	KindFetchStart    EventKind = "fetch.start"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"

	// Store events
	KindStoreError EventKind = "store.error"
	KindStorePurge EventKind = "store.purge"

	// Insight pipeline events
	KindCacheHit       EventKind = "insight.cache_hit"
	KindCacheMiss      EventKind = "insight.cache_miss"
	KindGenerate       EventKind = "insight.generate"
	KindFallback       EventKind = "insight.fallback"
	KindParseError     EventKind = "insight.parse_error"
	KindCoverageRepair EventKind = "insight.coverage_repair"
	KindArchive        EventKind = "insight.archive"
	KindArchiveSkip    EventKind = "insight.archive_skip"
	KindCacheClear     EventKind = "insight.cache_clear"

	// LLM events
	KindLLMRequest EventKind = "llm.request"
	KindLLMError   EventKind = "llm.error"

	// API events
	KindAPIRequest EventKind = "api.request"
	KindAPIError   EventKind = "api.error"

	// Export events
	KindExport      EventKind = "export.complete"
	KindExportError EventKind = "export.error"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // component: "coord", "insight", "api", "fetch", "main"
	SessionID string         `json:"session_id,omitempty"` // random hex, same for the whole process
	Category  string         `json:"category,omitempty"`
	RecordID  string         `json:"record_id,omitempty"` // archived insight id
	Dur       time.Duration  `json:"-"`                   // not serialized directly
	DurMs     float64        `json:"dur_ms,omitempty"`    // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Source    string         `json:"source,omitempty"`
	Provider  string         `json:"provider,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`   // free text
	Extra     map[string]any `json:"extra,omitempty"` // escape hatch for unusual fields
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
