package store

import (
	"errors"
	"strings"
	"time"

	"github.com/mattjoyce/inboxd/internal/message"
)

// InsertResult reports what Insert did with a message.
type InsertResult string

const (
	Inserted  InsertResult = "inserted"
	Duplicate InsertResult = "duplicate"
)

// InsertOutcome is returned by Insert. Diverged is only meaningful for
// duplicates: it is true when the redelivered payload differs from the
// stored one. The stored row is never changed either way.
type InsertOutcome struct {
	Result   InsertResult
	Diverged bool
}

// Filter narrows List. Zero values mean "no constraint".
type Filter struct {
	From  string
	Since *time.Time
	Q     string
}

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Page selects a window of an ordered result.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPage returns the page used when no limit/offset is supplied.
func DefaultPage() Page {
	return Page{Limit: DefaultLimit, Offset: 0}
}

// ErrInvalidPage is matched by every *PageError.
var ErrInvalidPage = errors.New("invalid page")

// PageError lists out-of-range paging parameters.
type PageError struct {
	Fields []message.FieldError
}

func (e *PageError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid page: " + strings.Join(parts, "; ")
}

func (e *PageError) Is(target error) bool {
	return target == ErrInvalidPage
}

// Validate rejects a limit outside [1, MaxLimit] and a negative offset.
func (p Page) Validate() error {
	var fields []message.FieldError
	if p.Limit < 1 || p.Limit > MaxLimit {
		fields = append(fields, message.FieldError{Field: "limit", Message: "must be between 1 and 100"})
	}
	if p.Offset < 0 {
		fields = append(fields, message.FieldError{Field: "offset", Message: "must be 0 or greater"})
	}
	if len(fields) > 0 {
		return &PageError{Fields: fields}
	}
	return nil
}

// ListResult is one page of messages plus the number of rows matching the
// filter regardless of paging.
type ListResult struct {
	Items []message.Message
	Total int
}

// SenderCount is the number of stored messages from one sender.
type SenderCount struct {
	From  string `json:"from"`
	Count int    `json:"count"`
}

// Stats aggregates the whole store.
type Stats struct {
	TotalMessages     int           `json:"total_messages"`
	SendersCount      int           `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTS    *time.Time    `json:"first_message_ts"`
	LastMessageTS     *time.Time    `json:"last_message_ts"`
}
