package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// localLayout is the zone-less date-time the backend emits and accepts
const localLayout = "2006-01-02T15:04:05.999999999"

// parseLayouts are tried in order after RFC 3339; fractional seconds are
// accepted by the first one without being spelled out
var parseLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Timestamp is a time.Time that reads both the backend's zone-less local
// date-times and RFC 3339
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// TimestampPtr wraps t and returns a pointer, for optional fields
func TimestampPtr(t time.Time) *Timestamp {
	ts := NewTimestamp(t)
	return &ts
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Local().Format(localLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range parseLayouts {
		if parsed, perr := time.ParseInLocation(layout, s, time.Local); perr == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp %q: %w", s, err)
}
