package dedupe

import "context"

// NoOpCache never remembers anything.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) Seen(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (c *NoOpCache) Mark(ctx context.Context, id string) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}
