package conversation

import (
	"github.com/google/uuid"
)

// Exchange is the single-shot handle for one outstanding request.
// Done is closed exactly once, after which Result is stable.
type Exchange struct {
	ID        uuid.UUID
	Utterance string
	// History is the transcript as it was right before Utterance was appended.
	History Transcript

	done   chan struct{}
	result Result
}

func newExchange(utterance string, history Transcript) *Exchange {
	return &Exchange{
		ID:        uuid.New(),
		Utterance: utterance,
		History:   history,
		done:      make(chan struct{}),
	}
}

func (e *Exchange) Done() <-chan struct{} {
	return e.done
}

// Result returns the settled result. It must only be called after Done is closed.
func (e *Exchange) Result() Result {
	return e.result
}

func (e *Exchange) Wait() Result {
	<-e.done
	return e.result
}
