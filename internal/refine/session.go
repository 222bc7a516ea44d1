package refine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tailorpress/internal/errors"
	"tailorpress/internal/types"
)

// MaxTurns is the hard cap on feedback turns per session.
const MaxTurns = 5

// State is the session lifecycle state.
type State string

const (
	StateAwaitingFeedback State = "awaiting_feedback"
	StateRegenerating     State = "regenerating"
	StateTerminated       State = "terminated"
)

// Regenerator produces a new document from one feedback string. The
// format generator satisfies this through the pipeline.
type Regenerator interface {
	Regenerate(ctx context.Context, feedback string) (types.FormattedDocument, error)
}

// Turn records one successful refinement: the feedback given and the
// document it produced.
type Turn struct {
	Feedback string                  `json:"feedback"`
	Document types.FormattedDocument `json:"document"`
}

// Session is the refinement state machine. The current document only
// advances on successful regeneration; a failed turn leaves both the
// document and the turn count untouched.
type Session struct {
	mu      sync.Mutex
	state   State
	current types.FormattedDocument
	history []Turn
	regen   Regenerator
	logger  *errors.Logger
}

// NewSession starts a session around an initial document.
func NewSession(initial types.FormattedDocument, regen Regenerator, logger *errors.Logger) *Session {
	return &Session{
		state:   StateAwaitingFeedback,
		current: initial,
		regen:   regen,
		logger:  logger,
	}
}

// SubmitFeedback runs one refinement turn. After MaxTurns successful
// turns it fails with SESSION_EXHAUSTED without touching the current
// document. A regeneration failure also leaves the session exactly as
// it was and consumes no turn.
func (s *Session) SubmitFeedback(ctx context.Context, feedback string) (types.FormattedDocument, error) {
	if strings.TrimSpace(feedback) == "" {
		return types.FormattedDocument{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Feedback is empty", nil)
	}

	s.mu.Lock()
	switch s.state {
	case StateTerminated:
		s.mu.Unlock()
		return types.FormattedDocument{}, errors.NewValidationError(errors.ErrCodeSessionTerminated,
			"Session has been finalized", nil)
	case StateRegenerating:
		s.mu.Unlock()
		return types.FormattedDocument{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"A regeneration is already in progress", nil)
	}

	if len(s.history) >= MaxTurns {
		s.mu.Unlock()
		return types.FormattedDocument{}, errors.NewValidationError(errors.ErrCodeSessionExhausted,
			fmt.Sprintf("Feedback turn cap of %d reached", MaxTurns), nil)
	}

	s.state = StateRegenerating
	s.mu.Unlock()

	doc, err := s.regen.Regenerate(ctx, feedback)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		// Finalized mid-flight; discard the result.
		return s.current, nil
	}
	s.state = StateAwaitingFeedback

	if err != nil {
		if s.logger != nil {
			s.logger.Warn("Regeneration failed, keeping previous document",
				"turn_count", len(s.history),
				"error", err.Error())
		}
		return types.FormattedDocument{}, err
	}

	s.current = doc
	s.history = append(s.history, Turn{
		Feedback: feedback,
		Document: doc,
	})

	return doc, nil
}

// Finalize terminates the session and returns the current document. It
// is idempotent and never fails.
func (s *Session) Finalize() types.FormattedDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateTerminated
	return s.current
}

// Current returns the latest good document.
func (s *Session) Current() types.FormattedDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// State returns the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TurnCount reports how many feedback turns succeeded so far. It always
// equals the length of History.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// RemainingTurns reports how many feedback turns are left.
func (s *Session) RemainingTurns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MaxTurns - len(s.history)
}

// History returns a copy of the successful turns in order.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}
