package audit

import (
	"context"
	"log"
	"time"

	"github.com/carelink/platform/internal/shared/events"
	"github.com/carelink/platform/internal/shared/types"
)

// Outcome classifies how an audited operation ended. Blocked attempts
// are recorded distinctly from completed ones so denied resets are
// visible in the trail.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one audit record appended to the event stream.
type Entry struct {
	ActorID      types.ID       `json:"actor_id"`
	ActorType    string         `json:"actor_type"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   types.ID       `json:"resource_id"`
	Outcome      Outcome        `json:"outcome"`
	Reason       string         `json:"reason,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Recorder appends audit entries to the shared event stream. A nil
// publisher degrades to logging so audited operations never fail on the
// trail itself.
type Recorder struct {
	bus events.Publisher
}

// NewRecorder creates a recorder over the event bus.
func NewRecorder(bus events.Publisher) *Recorder {
	return &Recorder{bus: bus}
}

// Record appends one entry. Errors are logged, not returned: the
// audited operation's outcome is already decided by the time the trail
// is written.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	if r.bus == nil {
		log.Printf("[AUDIT] actor=%s action=%s resource=%s/%s outcome=%s reason=%q",
			e.ActorID, e.Action, e.ResourceType, e.ResourceID, e.Outcome, e.Reason)
		return
	}

	event := events.NewEvent("audit."+e.Action, "audit", e).
		WithActor(e.ActorID, e.ActorType)
	if err := r.bus.Publish(ctx, event); err != nil {
		log.Printf("audit append failed for %s on %s/%s: %v", e.Action, e.ResourceType, e.ResourceID, err)
	}
}
