package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fd1az/dexarb/internal/apperror"
)

// State is an execution attempt's lifecycle state.
type State string

const (
	StatePending   State = "PENDING"
	StateSubmitted State = "SUBMITTED"
	StateConfirmed State = "CONFIRMED"
	StateFailed    State = "FAILED"
	StateSkipped   State = "SKIPPED"
)

// Skip reasons.
const (
	SkipInFlight   = "in-flight"
	SkipLeaseHeld  = "lease held"
	SkipCapacity   = "capacity"
	SkipLeaseError = "lease unavailable"
)

// Confirmation is an execution sink's final word on a submitted trade.
type Confirmation struct {
	Confirmed   bool
	BlockNumber uint64
}

var transitions = map[State][]State{
	StatePending:   {StateSubmitted, StateFailed, StateSkipped},
	StateSubmitted: {StateConfirmed, StateFailed},
}

// IsTerminal reports whether no further transition is allowed.
func (s State) IsTerminal() bool {
	_, ok := transitions[s]
	return !ok
}

// CanTransition reports whether s → to is allowed.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Attempt is one try at executing an opportunity.
type Attempt struct {
	ID            string
	Opportunity   Opportunity
	State         State
	AttemptedAt   time.Time
	SubmittedAt   time.Time
	ResolvedAt    time.Time
	TxHash        string
	BlockNumber   uint64
	FailureCode   apperror.Code
	FailureReason string
	SkipReason    string
}

// NewAttempt creates a PENDING attempt.
func NewAttempt(opp Opportunity, at time.Time) *Attempt {
	return &Attempt{
		ID:          uuid.NewString(),
		Opportunity: opp,
		State:       StatePending,
		AttemptedAt: at,
	}
}

// Transition moves the attempt to state to, or fails with INVALID_STATE.
func (a *Attempt) Transition(to State, at time.Time) error {
	if !a.State.CanTransition(to) {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("attempt %s: %s → %s", a.ID, a.State, to)))
	}
	a.State = to
	switch {
	case to == StateSubmitted:
		a.SubmittedAt = at
	case to.IsTerminal():
		a.ResolvedAt = at
	}
	return nil
}

// Submit records the transaction hash and moves to SUBMITTED.
func (a *Attempt) Submit(txHash string, at time.Time) error {
	if err := a.Transition(StateSubmitted, at); err != nil {
		return err
	}
	a.TxHash = txHash
	return nil
}

// Confirm moves to CONFIRMED.
func (a *Attempt) Confirm(block uint64, at time.Time) error {
	if err := a.Transition(StateConfirmed, at); err != nil {
		return err
	}
	a.BlockNumber = block
	return nil
}

// Fail moves to FAILED, keeping err's code and message.
func (a *Attempt) Fail(err error, at time.Time) error {
	if terr := a.Transition(StateFailed, at); terr != nil {
		return terr
	}
	a.FailureCode = apperror.GetCode(err)
	if err != nil {
		a.FailureReason = err.Error()
	}
	return nil
}

// Skip moves to SKIPPED with reason.
func (a *Attempt) Skip(reason string, at time.Time) error {
	if err := a.Transition(StateSkipped, at); err != nil {
		return err
	}
	a.SkipReason = reason
	return nil
}

// Duration returns the time from creation to resolution, or zero while in flight.
func (a *Attempt) Duration() time.Duration {
	if a.ResolvedAt.IsZero() {
		return 0
	}
	return a.ResolvedAt.Sub(a.AttemptedAt)
}

type attemptJSON struct {
	ID            string      `json:"id"`
	Opportunity   Opportunity `json:"opportunity"`
	State         State       `json:"state"`
	AttemptedAt   time.Time   `json:"attemptedAt"`
	SubmittedAt   *time.Time  `json:"submittedAt,omitempty"`
	ResolvedAt    *time.Time  `json:"resolvedAt,omitempty"`
	TxHash        string      `json:"txHash,omitempty"`
	BlockNumber   uint64      `json:"blockNumber,omitempty"`
	FailureCode   string      `json:"failureCode,omitempty"`
	FailureReason string      `json:"failureReason,omitempty"`
	SkipReason    string      `json:"skipReason,omitempty"`
}

// MarshalJSON omits unset optional fields.
func (a Attempt) MarshalJSON() ([]byte, error) {
	return json.Marshal(attemptJSON{
		ID:            a.ID,
		Opportunity:   a.Opportunity,
		State:         a.State,
		AttemptedAt:   a.AttemptedAt.UTC(),
		SubmittedAt:   optionalTime(a.SubmittedAt),
		ResolvedAt:    optionalTime(a.ResolvedAt),
		TxHash:        a.TxHash,
		BlockNumber:   a.BlockNumber,
		FailureCode:   string(a.FailureCode),
		FailureReason: a.FailureReason,
		SkipReason:    a.SkipReason,
	})
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
