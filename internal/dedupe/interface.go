// Package dedupe remembers message ids the store has already confirmed, so
// that redeliveries can be acknowledged without a database round trip.
//
// A cache is never authoritative. Entries are written only after the store
// reports the row exists, and rows are never deleted, so a hit can only mean
// "already stored". A miss, an expired entry or a cache error always falls
// through to the store.
package dedupe

import "context"

// Cache is a set of message ids known to be stored.
type Cache interface {
	// Seen reports whether id was marked and has not expired.
	Seen(ctx context.Context, id string) (bool, error)

	// Mark records id as stored.
	Mark(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
