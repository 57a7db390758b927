package api

import (
	"context"

	"github.com/mattjoyce/inboxd/internal/store"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/mattjoyce/inboxd/internal/api Store

// Store is the read side of the message store used by the query endpoints
// and readiness.
type Store interface {
	List(ctx context.Context, f store.Filter, p store.Page) (store.ListResult, error)
	Stats(ctx context.Context) (store.Stats, error)
	Ping(ctx context.Context) error
}
