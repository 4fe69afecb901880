package entity

import (
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseInit                 Phase = "init"
	PhaseRegistering          Phase = "registering"
	PhaseAwaitingVerification Phase = "awaiting_verification"
	PhaseLoggingIn            Phase = "logging_in"
	PhaseExtractingToken      Phase = "extracting_token"
	PhasePersisting           Phase = "persisting"
	PhaseDone                 Phase = "done"
	PhaseFailed               Phase = "failed"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetry
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Diagnostic is the optional payload attached to retry and fatal phase
// results. It exists for post-hoc debugging only; nothing in the engine
// depends on it for correctness.
type Diagnostic struct {
	Reason     string
	HTML       string
	Screenshot []byte
}

// PhaseResult is produced by each phase handler and consumed by the
// state machine to decide the next transition. Value carries the phase's
// extracted artifact (verification link, token).
type PhaseResult struct {
	Phase      Phase
	Outcome    Outcome
	Value      string
	Diagnostic *Diagnostic
}

// Session is one end-to-end run of the engine. It is owned exclusively
// by the state machine; its Identity never changes after creation.
type Session struct {
	ID        string
	Identity  Identity
	Phase     Phase
	StartedAt time.Time
	LastErr   error
}

func NewSession(identity Identity) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Identity:  identity,
		Phase:     PhaseInit,
		StartedAt: time.Now(),
	}
}

// Record is the persisted result of a successful session. It is written
// at most once and never mutated after creation.
type Record struct {
	Address     string
	Secret      string
	Token       string
	CompletedAt time.Time
}
