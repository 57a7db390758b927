package webhook

import "github.com/mattjoyce/inboxd/internal/message"

// StatusResponse is the JSON body for accepted deliveries, new or repeated.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON body for rejected deliveries. Fields is set
// only for validation failures.
type ErrorResponse struct {
	Error  string               `json:"error"`
	Fields []message.FieldError `json:"fields,omitempty"`
}

// Result values logged for each delivery.
const (
	ResultInserted = "inserted"
	ResultDup      = "duplicate"
	ResultCached   = "cached"
)
