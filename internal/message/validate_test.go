package message

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBody = `{"message_id":"m1","from":"+919876543210","to":"+14155550100","ts":"2025-01-15T10:00:00Z","text":"Hello"}`

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	out := map[string]string{}
	for _, f := range verr.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestDecodeValid(t *testing.T) {
	msg, err := Decode([]byte(validBody))
	require.NoError(t, err)

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "+919876543210", msg.From)
	assert.Equal(t, "+14155550100", msg.To)
	assert.Equal(t, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC), msg.TS)
	require.NotNil(t, msg.Text)
	assert.Equal(t, "Hello", *msg.Text)
	assert.True(t, msg.CreatedAt.IsZero())
}

func TestDecodeTextOptional(t *testing.T) {
	for _, body := range []string{
		`{"message_id":"m1","from":"+1","to":"+2","ts":"2025-01-15T10:00:00Z"}`,
		`{"message_id":"m1","from":"+1","to":"+2","ts":"2025-01-15T10:00:00Z","text":null}`,
	} {
		msg, err := Decode([]byte(body))
		require.NoError(t, err, body)
		assert.Nil(t, msg.Text, body)
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	_, err := Decode([]byte(`{"message_id":"m1","from":"+1","to":"+2","ts":"2025-01-15T10:00:00Z","extra":42}`))
	require.NoError(t, err)
}

func TestDecodePhoneBoundary(t *testing.T) {
	tests := []struct {
		phone string
		ok    bool
	}{
		{"+9876543210", true},
		{"+1", true},
		{"9876543210", false},
		{"+", false},
		{"+98765 43210", false},
		{"+98765-43210", false},
		{"++123", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			body := `{"message_id":"m1","from":"` + tt.phone + `","to":"` + tt.phone + `","ts":"2025-01-15T10:00:00Z"}`
			_, err := Decode([]byte(body))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			fields := fieldsOf(t, err)
			assert.Contains(t, fields, "from")
			assert.Contains(t, fields, "to")
		})
	}
}

func TestDecodeTextLengthBoundary(t *testing.T) {
	build := func(text string) []byte {
		return []byte(`{"message_id":"m1","from":"+1","to":"+2","ts":"2025-01-15T10:00:00Z","text":"` + text + `"}`)
	}

	_, err := Decode(build(strings.Repeat("a", MaxTextLength)))
	assert.NoError(t, err, "4096 characters must be accepted")

	_, err = Decode(build(strings.Repeat("a", MaxTextLength+1)))
	fields := fieldsOf(t, err)
	assert.Equal(t, "must be at most 4096 characters", fields["text"])

	// Length is measured in characters, not bytes.
	_, err = Decode(build(strings.Repeat("é", MaxTextLength)))
	assert.NoError(t, err)
}

func TestDecodeTimestampRules(t *testing.T) {
	tests := []struct {
		ts string
		ok bool
	}{
		{"2025-01-15T10:00:00Z", true},
		{"2025-01-15T10:00:00.123456Z", true},
		{"2025-01-15T10:00Z", true},
		{"2025-01-15T10Z", true},
		{"2025-01-15 10:00:00Z", true},
		{"20250115T100000Z", true},
		{"20250115T100000.25Z", true},
		{"20250115T1000Z", true},
		{"2025-01-15Z", false},
		{"20250115T100000+0000", false},
		{"2025-01-15T10:00:00+00:00", false},
		{"2025-01-15T10:00:00", false},
		{"2025-13-15T10:00:00Z", false},
		{"not-a-date-Z", false},
		{"Z", false},
	}
	for _, tt := range tests {
		t.Run(tt.ts, func(t *testing.T) {
			_, err := Decode([]byte(`{"message_id":"m1","from":"+1","to":"+2","ts":"` + tt.ts + `"}`))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Contains(t, fieldsOf(t, err), "ts")
		})
	}
}

func TestDecodeReportsEveryField(t *testing.T) {
	_, err := Decode([]byte(`{"message_id":"","from":"123","to":42,"ts":"yesterday","text":7}`))
	require.True(t, errors.Is(err, ErrInvalid))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	got := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		got = append(got, f.Field)
	}
	assert.Equal(t, []string{"message_id", "from", "to", "ts", "text"}, got)

	fields := fieldsOf(t, err)
	assert.Equal(t, "field required", fields["message_id"])
	assert.Equal(t, "must be a string", fields["to"])
	assert.Equal(t, "must be a string", fields["text"])
}

func TestDecodeMissingFields(t *testing.T) {
	fields := fieldsOf(t, func() error { _, err := Decode([]byte(`{}`)); return err }())
	for _, name := range []string{"message_id", "from", "to", "ts"} {
		assert.Equal(t, "field required", fields[name], name)
	}
	assert.NotContains(t, fields, "text")
}

func TestDecodeNonStringMessageID(t *testing.T) {
	_, err := Decode([]byte(`{"message_id":123,"from":"+1","to":"+2","ts":"2025-01-15T10:00:00Z"}`))
	assert.Equal(t, "must be a string", fieldsOf(t, err)["message_id"])
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, body := range []string{``, `null`, `[]`, `"m1"`, `{"message_id":`} {
		_, err := Decode([]byte(body))
		assert.Contains(t, fieldsOf(t, err), "body", body)
	}
}

func TestStorageLayoutOrdersLexicographically(t *testing.T) {
	a, err := ParseTimestamp("2025-01-15T10:00:00Z")
	require.NoError(t, err)
	b, err := ParseTimestamp("2025-01-15T10:00:00.5Z")
	require.NoError(t, err)

	// The raw strings sort the wrong way round; the stored form does not.
	assert.Less(t, "2025-01-15T10:00:00.5Z", "2025-01-15T10:00:00Z")
	assert.Less(t, FormatStorage(a), FormatStorage(b))
	assert.Len(t, FormatStorage(a), len(FormatStorage(b)))

	back, err := ParseStorage(FormatStorage(b))
	require.NoError(t, err)
	assert.True(t, back.Equal(b))
}

func TestParseTimestampFormsAgree(t *testing.T) {
	want := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	for _, ts := range []string{
		"2025-01-15T10:00:00Z",
		"2025-01-15T10:00Z",
		"2025-01-15T10Z",
		"20250115T100000Z",
		"20250115T1000Z",
	} {
		got, err := ParseTimestamp(ts)
		require.NoError(t, err, ts)
		assert.Equal(t, want, got, ts)
	}
}

func TestTimestampNormalization(t *testing.T) {
	// Fractions past nanoseconds are truncated, not rounded.
	got, err := ParseTimestamp("2025-01-15T10:00:00.1234567899Z")
	require.NoError(t, err)
	assert.Equal(t, 123456789, got.Nanosecond())

	// The stored instant is echoed in its shortest RFC 3339 form, not as sent.
	msg, err := Decode([]byte(`{"message_id":"m1","from":"+1","to":"+2","ts":"2025-01-15T10:00:00.000Z"}`))
	require.NoError(t, err)
	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"ts":"2025-01-15T10:00:00Z"`)

	back, err := ParseStorage(FormatStorage(got))
	require.NoError(t, err)
	assert.Equal(t, got, back)
}

func TestParseInstantConvertsToUTC(t *testing.T) {
	got, err := ParseInstant("2025-01-15T15:30:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC), got)

	day, err := ParseInstant("2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseInstant("15/01/2025")
	assert.Error(t, err)
}
