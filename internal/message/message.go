// Package message defines the inbound message record and its validation.
package message

import (
	"fmt"
	"strings"
	"time"
)

// MaxTextLength is the maximum number of characters allowed in Text.
const MaxTextLength = 4096

// StorageLayout is the canonical fixed-width UTC form timestamps are stored
// in. Lexicographic order of these strings equals chronological order.
const StorageLayout = "2006-01-02T15:04:05.000000000Z"

// Message is a single delivered message.
type Message struct {
	ID        string    `json:"message_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	TS        time.Time `json:"ts"`
	Text      *string   `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// timestampLayouts are the ISO-8601 forms accepted for message timestamps.
// Go accepts a fractional second after the seconds field even when the
// layout omits it.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"20060102T150405Z07:00",
	"20060102T1504Z07:00",
}

// ParseTimestamp parses an ISO-8601 instant that must be written in UTC with
// a trailing Z. Extended and basic formats are accepted down to hour
// precision. Fractions beyond nanoseconds are truncated. The result is in
// UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if !strings.HasSuffix(s, "Z") {
		return time.Time{}, fmt.Errorf("timestamp %q must end with Z", s)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
}

// DateLayout is the date-only form accepted for query bounds.
const DateLayout = "2006-01-02"

// ParseInstant parses an RFC 3339 instant with any offset and converts it
// to UTC. A bare date means the start of that day in UTC. Used for query
// bounds where a Z suffix is not required.
func ParseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid RFC 3339 timestamp %q", s)
}

// FormatStorage renders t in StorageLayout.
func FormatStorage(t time.Time) string {
	return t.UTC().Format(StorageLayout)
}

// ParseStorage is the inverse of FormatStorage.
func ParseStorage(s string) (time.Time, error) {
	t, err := time.Parse(StorageLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
