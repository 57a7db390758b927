package api

import "github.com/mattjoyce/inboxd/internal/message"

// MessagesResponse is returned by GET /messages.
type MessagesResponse struct {
	Items  []message.Message `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// HealthResponse is returned by GET /health/live and GET /health/ready.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ErrorResponse is returned on errors. Fields is set only for 422.
type ErrorResponse struct {
	Error  string               `json:"error"`
	Fields []message.FieldError `json:"fields,omitempty"`
}
