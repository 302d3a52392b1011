package conversation

import (
	"context"

	"github.com/pkg/errors"
)

const (
	WelcomeText = "Hello! Welcome to Pamith Tech Solutions. I can help you with order status, " +
		"return policies, or product recommendations. How can I assist you today?"
	FallbackText = "I apologize, but I encountered an error connecting to the server. " +
		"Please ensure the backend is running."
)

// Result is the outcome of one exchange: either a reply or a failure, never both.
type Result struct {
	reply string
	err   error
}

func NewReplyResult(reply string) Result {
	return Result{reply: reply}
}

func NewFailureResult(err error) Result {
	if err == nil {
		err = errors.New("exchange failed")
	}
	return Result{err: err}
}

func (r Result) Ok() bool {
	return r.err == nil
}

func (r Result) Reply() string {
	return r.reply
}

func (r Result) Err() error {
	return r.err
}

// Text is what gets shown as the assistant message for this result.
func (r Result) Text() string {
	if r.err != nil {
		return FallbackText
	}
	return r.reply
}

// Sender performs one exchange with the answering service. Implementations
// must always return a settled Result and never panic on transport errors.
type Sender interface {
	Send(ctx context.Context, utterance string, history Transcript) Result
}

type SenderFunc func(ctx context.Context, utterance string, history Transcript) Result

func (f SenderFunc) Send(ctx context.Context, utterance string, history Transcript) Result {
	return f(ctx, utterance, history)
}
