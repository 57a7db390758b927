package webhook

import (
	"fmt"

	"github.com/mattjoyce/inboxd/internal/config"
)

// Settings are the request-level knobs of the ingestion endpoint.
type Settings struct {
	Secret          string
	SignatureHeader string
	MaxBodySize     int64
}

// DefaultSignatureHeader is used when none is configured.
const DefaultSignatureHeader = "X-Signature"

// FromConfig converts config.WebhookConfig to Settings, parsing the human
// body size.
func FromConfig(wc config.WebhookConfig) (Settings, error) {
	maxBody, err := config.ParseSize(wc.MaxBodySize)
	if err != nil {
		return Settings{}, fmt.Errorf("webhook: invalid max_body_size %q: %w", wc.MaxBodySize, err)
	}
	header := wc.SignatureHeader
	if header == "" {
		header = DefaultSignatureHeader
	}
	return Settings{
		Secret:          wc.Secret,
		SignatureHeader: header,
		MaxBodySize:     maxBody,
	}, nil
}
