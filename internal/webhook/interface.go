package webhook

import (
	"context"

	"github.com/mattjoyce/inboxd/internal/message"
	"github.com/mattjoyce/inboxd/internal/store"
)

//go:generate mockgen -destination=mocks/mock_inserter.go -package=mocks github.com/mattjoyce/inboxd/internal/webhook Inserter

// Inserter persists validated messages idempotently.
type Inserter interface {
	Insert(ctx context.Context, msg message.Message) (store.InsertOutcome, error)
}
