// Package conversation holds the client-side state of a support chat session.
//
// A Store owns the transcript and the pending flag. It is driven from a single
// goroutine (typically a bubbletea update loop or a line-oriented REPL):
// SubmitUtterance starts at most one exchange at a time, and the owner hands the
// exchange's Result back through OnExchangeSettled once it completes. The
// exchange itself runs on its own goroutine against an immutable snapshot of the
// history, so the Store needs no locking as long as only its owner calls it.
package conversation

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Store struct {
	sender     Sender
	transcript Transcript
	pending    *Exchange
	welcome    string
}

type StoreOption func(*Store)

func WithWelcome(text string) StoreOption {
	return func(s *Store) {
		s.welcome = text
	}
}

// NewStore starts a session. The transcript is seeded with a single assistant greeting.
func NewStore(sender Sender, options ...StoreOption) *Store {
	ret := &Store{
		sender:  sender,
		welcome: WelcomeText,
	}
	for _, option := range options {
		option(ret)
	}

	ret.transcript = Transcript{NewAssistantMessage(ret.welcome)}

	return ret
}

// Transcript returns a copy of the current transcript.
func (s *Store) Transcript() Transcript {
	return s.transcript.Clone()
}

func (s *Store) Len() int {
	return len(s.transcript)
}

func (s *Store) Pending() bool {
	return s.pending != nil
}

// PendingExchange returns the outstanding exchange, or nil when idle.
func (s *Store) PendingExchange() *Exchange {
	return s.pending
}

// SubmitUtterance appends the trimmed text as a user message and starts an
// exchange in the background. It returns immediately.
//
// Empty input and submissions while an exchange is outstanding are ignored:
// nothing is appended, nothing is sent, and ok is false.
func (s *Store) SubmitUtterance(ctx context.Context, text string) (*Exchange, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		log.Trace().Msg("ignoring empty utterance")
		return nil, false
	}
	if s.pending != nil {
		log.Debug().
			Str("pending_exchange", s.pending.ID.String()).
			Msg("ignoring utterance while an exchange is outstanding")
		return nil, false
	}

	history := s.transcript.Clone()
	s.transcript = append(s.transcript, NewUserMessage(trimmed))

	ex := newExchange(trimmed, history)
	s.pending = ex

	log.Debug().
		Str("exchange", ex.ID.String()).
		Int("history_len", len(history)).
		Msg("starting exchange")

	go s.run(ctx, ex)

	return ex, true
}

func (s *Store) run(ctx context.Context, ex *Exchange) {
	defer close(ex.done)
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("exchange", ex.ID.String()).
				Interface("panic", r).
				Msg("sender panicked")
			ex.result = NewFailureResult(errors.Errorf("sender panicked: %v", r))
		}
	}()

	if s.sender == nil {
		ex.result = NewFailureResult(errors.New("no sender configured"))
		return
	}
	ex.result = s.sender.Send(ctx, ex.Utterance, ex.History)
}

// OnExchangeSettled appends the assistant message for r and clears the pending
// flag. It is the only way back to idle. Settling while idle is a no-op.
func (s *Store) OnExchangeSettled(r Result) bool {
	if s.pending == nil {
		log.Warn().Msg("exchange settled while no exchange was pending")
		return false
	}

	ev := log.Debug().Str("exchange", s.pending.ID.String()).Bool("ok", r.Ok())
	if !r.Ok() {
		ev = ev.AnErr("failure", r.Err())
	}
	ev.Msg("exchange settled")

	s.transcript = append(s.transcript, NewAssistantMessage(r.Text()))
	s.pending = nil

	return true
}

// Settle blocks until ex completes and then settles it. It refuses exchanges
// that are not the currently pending one.
func (s *Store) Settle(ex *Exchange) bool {
	if ex == nil || ex != s.pending {
		return false
	}
	return s.OnExchangeSettled(ex.Wait())
}
