package intake

import (
	"context"
	"time"

	"github.com/carelink/platform/internal/intake/domain"
	"github.com/carelink/platform/internal/shared/types"
)

// Deduplicator suppresses accidental double-sends of patient messages.
// A message is a duplicate when an admitted user message with the same
// content hash exists inside the trailing window. Only user messages
// participate; model and doctor turns are never deduplicated.
type Deduplicator struct {
	messages domain.MessageRepository
	window   time.Duration
	now      func() time.Time
}

// NewDeduplicator builds a deduplicator with the given trailing window.
func NewDeduplicator(messages domain.MessageRepository, window time.Duration) *Deduplicator {
	return &Deduplicator{
		messages: messages,
		window:   window,
		now:      time.Now,
	}
}

// DedupResult reports a duplicate check outcome. When IsDuplicate is
// set, MatchedMessageID names the admitted message that shadows the new
// one.
type DedupResult struct {
	IsDuplicate      bool
	MatchedMessageID types.ID
}

// Check looks for an admitted user message with the same hash inside
// the window. The window is half-open: a prior message exactly window
// old is no longer a match.
func (d *Deduplicator) Check(ctx context.Context, sessionID types.ID, content string) (DedupResult, error) {
	hash := domain.HashContent(sessionID, content)
	cutoff := d.now().Add(-d.window)

	prior, err := d.messages.FindRecentByHash(ctx, sessionID, hash, cutoff)
	if err != nil {
		return DedupResult{}, err
	}
	if prior == nil {
		return DedupResult{}, nil
	}

	return DedupResult{IsDuplicate: true, MatchedMessageID: prior.ID}, nil
}
