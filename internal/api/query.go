package api

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/mattjoyce/inboxd/internal/message"
	"github.com/mattjoyce/inboxd/internal/store"
)

// parseListQuery turns GET /messages parameters into a store filter and
// page. Empty parameters count as absent. Bad values are reported per
// field; nothing is clamped.
func parseListQuery(q url.Values) (store.Filter, store.Page, []message.FieldError) {
	var (
		filter = store.Filter{}
		page   = store.DefaultPage()
		fields []message.FieldError
		bad    = map[string]bool{}
	)

	parseInt := func(name string, dst *int) {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			return
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields = append(fields, message.FieldError{Field: name, Message: "must be an integer"})
			bad[name] = true
			return
		}
		*dst = n
	}
	parseInt("limit", &page.Limit)
	parseInt("offset", &page.Offset)

	if err := page.Validate(); err != nil {
		var perr *store.PageError
		if errors.As(err, &perr) {
			for _, f := range perr.Fields {
				if !bad[f.Field] {
					fields = append(fields, f)
				}
			}
		}
	}

	filter.From = normalizeSender(q.Get("from"))

	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		since, err := message.ParseInstant(raw)
		if err != nil {
			fields = append(fields, message.FieldError{Field: "since", Message: "must be an RFC 3339 timestamp or a YYYY-MM-DD date"})
		} else {
			filter.Since = &since
		}
	}

	filter.Q = q.Get("q")

	return filter, page, fields
}

// normalizeSender restores a leading '+' that arrived as a space because the
// client did not percent-encode it (?from=+1415...).
func normalizeSender(from string) string {
	if strings.HasPrefix(from, " ") {
		rest := strings.TrimLeft(from, " ")
		if rest != "" && !strings.ContainsAny(rest, " +") {
			return "+" + rest
		}
	}
	return from
}
