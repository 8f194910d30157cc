package intake

import (
	"context"
	"testing"
	"time"

	"github.com/carelink/platform/internal/intake/domain"
	"github.com/carelink/platform/internal/shared/types"
)

// memMessageRepo is an in-memory MessageRepository for service and
// dedup tests.
type memMessageRepo struct {
	messages []*domain.ChatMessage
}

func (r *memMessageRepo) Create(_ context.Context, msg *domain.ChatMessage) error {
	r.messages = append(r.messages, msg)
	return nil
}

func (r *memMessageRepo) ListBySession(_ context.Context, sessionID types.ID, limit int) ([]*domain.ChatMessage, error) {
	var out []*domain.ChatMessage
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memMessageRepo) FindRecentByHash(_ context.Context, sessionID types.ID, hash string, after time.Time) (*domain.ChatMessage, error) {
	var newest *domain.ChatMessage
	for _, m := range r.messages {
		if m.SessionID != sessionID || m.Role != domain.MessageRoleUser || m.ContentHash != hash {
			continue
		}
		if !m.CreatedAt.After(after) {
			continue
		}
		if newest == nil || m.CreatedAt.After(newest.CreatedAt) {
			newest = m
		}
	}
	return newest, nil
}

func userMessageAt(sessionID types.ID, content string, at time.Time) *domain.ChatMessage {
	m := domain.NewChatMessage(sessionID, domain.MessageRoleUser, content)
	m.CreatedAt = at
	return m
}

func TestDedupWithinWindow(t *testing.T) {
	repo := &memMessageRepo{}
	dedup := NewDeduplicator(repo, 5*time.Second)

	now := time.Now()
	dedup.now = func() time.Time { return now }

	sessionID := types.NewID()
	prior := userMessageAt(sessionID, "I have a headache", now.Add(-2*time.Second))
	repo.messages = append(repo.messages, prior)

	res, err := dedup.Check(context.Background(), sessionID, "I have a headache")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.IsDuplicate {
		t.Error("Message 2s after an identical one must be a duplicate")
	}
	if res.MatchedMessageID != prior.ID {
		t.Errorf("MatchedMessageID = %s, want %s", res.MatchedMessageID, prior.ID)
	}
}

func TestDedupOutsideWindow(t *testing.T) {
	repo := &memMessageRepo{}
	dedup := NewDeduplicator(repo, 5*time.Second)

	now := time.Now()
	dedup.now = func() time.Time { return now }

	sessionID := types.NewID()
	repo.messages = append(repo.messages,
		userMessageAt(sessionID, "I have a headache", now.Add(-6*time.Second)))

	res, err := dedup.Check(context.Background(), sessionID, "I have a headache")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.IsDuplicate {
		t.Error("Message 6s after an identical one must be accepted")
	}
}

func TestDedupWindowBoundaryIsHalfOpen(t *testing.T) {
	repo := &memMessageRepo{}
	dedup := NewDeduplicator(repo, 5*time.Second)

	now := time.Now()
	dedup.now = func() time.Time { return now }

	sessionID := types.NewID()
	repo.messages = append(repo.messages,
		userMessageAt(sessionID, "hello", now.Add(-5*time.Second)))

	res, err := dedup.Check(context.Background(), sessionID, "hello")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.IsDuplicate {
		t.Error("Message exactly window old must no longer match")
	}
}

func TestDedupIgnoresOtherSessionsAndRoles(t *testing.T) {
	repo := &memMessageRepo{}
	dedup := NewDeduplicator(repo, 5*time.Second)

	now := time.Now()
	dedup.now = func() time.Time { return now }

	sessionID := types.NewID()
	otherSession := types.NewID()

	repo.messages = append(repo.messages,
		userMessageAt(otherSession, "same text", now.Add(-time.Second)))

	model := domain.NewChatMessage(sessionID, domain.MessageRoleModel, "same text")
	model.CreatedAt = now.Add(-time.Second)
	repo.messages = append(repo.messages, model)

	res, err := dedup.Check(context.Background(), sessionID, "same text")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.IsDuplicate {
		t.Error("Other sessions and non-user roles must not shadow a message")
	}
}

func TestDedupContentIsExact(t *testing.T) {
	repo := &memMessageRepo{}
	dedup := NewDeduplicator(repo, 5*time.Second)

	now := time.Now()
	dedup.now = func() time.Time { return now }

	sessionID := types.NewID()
	repo.messages = append(repo.messages,
		userMessageAt(sessionID, "I have a headache", now.Add(-time.Second)))

	res, err := dedup.Check(context.Background(), sessionID, "i have a headache")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.IsDuplicate {
		t.Error("Case variation must not match; no normalization is applied")
	}
}
