package reconcile

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Phase is a state of the reconciliation state machine.
type Phase string

const (
	PhasePending           Phase = "pending"
	PhaseRemoving          Phase = "removing"
	PhaseCreatingSkeletons Phase = "creating-skeletons"
	PhasePopulatingContent Phase = "populating-content"
	PhaseLinking           Phase = "linking-cross-references"
	PhaseDone              Phase = "done"
	PhaseFailed            Phase = "failed"
)

// next maps each phase to the only phase allowed to follow it. Failed is
// reachable from every phase and is handled separately.
var next = map[Phase]Phase{
	PhasePending:           PhaseRemoving,
	PhaseRemoving:          PhaseCreatingSkeletons,
	PhaseCreatingSkeletons: PhasePopulatingContent,
	PhasePopulatingContent: PhaseLinking,
	PhaseLinking:           PhaseDone,
}

// Event types.
const (
	EventInfo    = "info"
	EventWarning = "warning"
	EventError   = "error"
)

// Event records one step of a run.
type Event struct {
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type (info, warning, error)
	Type string `json:"type"`

	// Phase is the phase the run was in
	Phase Phase `json:"phase"`

	// Entity is the kind of entity being processed, if any
	Entity string `json:"entity,omitempty"`

	// ID is the declared id being processed, if any
	ID string `json:"id,omitempty"`

	Message string `json:"message"`
}

// Stats counts what a run did to the backend.
type Stats struct {
	Found   int `json:"found"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Revised int `json:"revised"`
	Trashed int `json:"trashed"`
	Skipped int `json:"skipped"`
}

// Changed reports whether the run modified the backend at all.
func (s Stats) Changed() bool {
	return s.Created+s.Updated+s.Revised+s.Trashed > 0
}

// Run is the state of one site's reconciliation.
type Run struct {
	ID   string `json:"id"`
	Site string `json:"site"`

	Phase Phase `json:"phase"`

	// FailedIn is the phase that was running when the run failed
	FailedIn Phase `json:"failedIn,omitempty"`

	Stats  Stats   `json:"stats"`
	Events []Event `json:"events,omitempty"`

	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`

	// DryRun is set when the run was applied to a throwaway store
	DryRun bool `json:"dryRun,omitempty"`
}

func newRun(site string, now time.Time) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Site:      site,
		Phase:     PhasePending,
		StartedAt: now,
	}
}

// enter moves the run to phase p. Phases only advance in order; anything
// else is a programming error and fails the run.
func (r *Run) enter(p Phase) error {
	if next[r.Phase] != p {
		return fmt.Errorf("cannot enter phase %s from %s", p, r.Phase)
	}
	r.Phase = p
	return nil
}

func (r *Run) addEvent(eventType, entity, id, message string) {
	r.Events = append(r.Events, Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Phase:     r.Phase,
		Entity:    entity,
		ID:        id,
		Message:   message,
	})
}

func (r *Run) complete(now time.Time) {
	r.CompletedAt = &now
}

func (r *Run) fail(now time.Time, err error) {
	r.addEvent(EventError, "", "", err.Error())
	r.FailedIn = r.Phase
	r.Phase = PhaseFailed
	r.CompletedAt = &now
	r.ErrorMessage = err.Error()
}

// Succeeded reports whether the run reached Done.
func (r *Run) Succeeded() bool {
	return r.Phase == PhaseDone
}
