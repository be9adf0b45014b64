// Package watermark tracks the per-table high-water marks that bound incremental extraction
package watermark

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/ethpandaops/deltastage/pkg/errkind"
)

// SentinelMin precedes every real timestamp; a table at SentinelMin is extracted in full
//
//nolint:gochecknoglobals // Immutable sentinel value
var SentinelMin = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrInvalidTimestamp is returned when a stored timestamp cannot be parsed
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// timestampLayouts are tried in order when decoding. Layouts without a zone are read as UTC.
//
//nolint:gochecknoglobals // Read-only lookup table
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Watermark maps table names to the newest modification timestamp already extracted
type Watermark map[string]time.Time

// Get returns the watermark of a table, or SentinelMin when the table has none
func (w Watermark) Get(table string) time.Time {
	if ts, ok := w[table]; ok {
		return ts
	}

	return SentinelMin
}

// Tables returns the table names in sorted order
func (w Watermark) Tables() []string {
	return slices.Sorted(maps.Keys(w))
}

// Equal reports whether both mappings hold the same instants for the same tables
func (w Watermark) Equal(other Watermark) bool {
	if len(w) != len(other) {
		return false
	}

	for table, ts := range w {
		o, ok := other[table]
		if !ok || !o.Equal(ts) {
			return false
		}
	}

	return true
}

// Advance returns the refreshed mapping with every table held at or above its prior value, so
// a source whose max timestamp moved backwards does not re-open an extracted interval.
func Advance(prior, refreshed Watermark) Watermark {
	out := make(Watermark, len(refreshed))

	for table, ts := range refreshed {
		if prev := prior.Get(table); prev.After(ts) {
			ts = prev
		}

		out[table] = ts
	}

	return out
}

// Encode serializes a watermark as a flat JSON object of RFC 3339 UTC timestamps
func Encode(w Watermark) ([]byte, error) {
	flat := make(map[string]string, len(w))
	for table, ts := range w {
		flat[table] = FormatTimestamp(ts)
	}

	return json.Marshal(flat)
}

// Decode parses a serialized watermark. Any malformed content is an errkind.Decode error.
func Decode(data []byte) (Watermark, error) {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, errkind.New(errkind.Decode, "decode watermark", err)
	}

	if flat == nil {
		return nil, errkind.New(errkind.Decode, "decode watermark", errors.New("watermark document is null"))
	}

	w := make(Watermark, len(flat))

	for table, value := range flat {
		ts, err := ParseTimestamp(value)
		if err != nil {
			return nil, errkind.New(errkind.Decode, "decode watermark", fmt.Errorf("table %s: %w", table, err))
		}

		w[table] = ts
	}

	return w, nil
}

// FormatTimestamp renders a timestamp the way watermarks are stored
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp reads RFC 3339 timestamps and the "YYYY-MM-DD HH:MM:SS[.ffffff]" form
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
}
