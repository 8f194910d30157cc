package events

import "context"

// Publisher is the event publishing interface modules depend on. A nil
// publisher is tolerated everywhere: event emission never gates the
// primary write.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Ensure Bus implements Publisher
var _ Publisher = (*Bus)(nil)
