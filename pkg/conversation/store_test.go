package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	utterance string
	history   Transcript
}

// recordingSender replies with a fixed function of the utterance and remembers every call.
type recordingSender struct {
	mu     sync.Mutex
	calls  []recordedCall
	reply  func(utterance string) Result
	gate   chan struct{}
	called chan struct{}
}

func newRecordingSender(reply func(string) Result) *recordingSender {
	return &recordingSender{
		reply:  reply,
		called: make(chan struct{}, 16),
	}
}

func (r *recordingSender) Send(ctx context.Context, utterance string, history Transcript) Result {
	r.mu.Lock()
	r.calls = append(r.calls, recordedCall{utterance: utterance, history: history})
	gate := r.gate
	r.mu.Unlock()
	r.called <- struct{}{}

	if gate != nil {
		<-gate
	}
	return r.reply(utterance)
}

func (r *recordingSender) Calls() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]recordedCall, len(r.calls))
	copy(ret, r.calls)
	return ret
}

func echoReply(utterance string) Result {
	return NewReplyResult("re: " + utterance)
}

func contents(t Transcript) []string {
	ret := make([]string, len(t))
	for i, m := range t {
		ret[i] = fmt.Sprintf("%s:%s", m.Role, m.Content)
	}
	return ret
}

func TestNewStoreSeedsGreeting(t *testing.T) {
	s := NewStore(nil)

	tr := s.Transcript()
	require.Len(t, tr, 1)
	assert.Equal(t, RoleAssistant, tr[0].Role)
	assert.Equal(t, WelcomeText, tr[0].Content)
	assert.False(t, s.Pending())
}

func TestNewStoreCustomWelcome(t *testing.T) {
	s := NewStore(nil, WithWelcome("hi there"))
	assert.Equal(t, []string{"assistant:hi there"}, contents(s.Transcript()))
}

func TestSubmitSuccessScenario(t *testing.T) {
	sender := newRecordingSender(func(string) Result {
		return NewReplyResult("Your order ships tomorrow.")
	})
	s := NewStore(sender)

	ex, ok := s.SubmitUtterance(context.Background(), "Where is my order?")
	require.True(t, ok)
	require.NotNil(t, ex)
	assert.True(t, s.Pending())
	assert.Equal(t, []string{
		"assistant:" + WelcomeText,
		"user:Where is my order?",
	}, contents(s.Transcript()))

	require.True(t, s.Settle(ex))

	assert.False(t, s.Pending())
	assert.Equal(t, []string{
		"assistant:" + WelcomeText,
		"user:Where is my order?",
		"assistant:Your order ships tomorrow.",
	}, contents(s.Transcript()))
}

func TestSubmitFailureScenario(t *testing.T) {
	sender := newRecordingSender(func(string) Result {
		return NewFailureResult(errors.New("dial tcp: connection refused"))
	})
	s := NewStore(sender)

	ex, ok := s.SubmitUtterance(context.Background(), "Where is my order?")
	require.True(t, ok)
	require.True(t, s.Settle(ex))

	last, ok := s.Transcript().Last()
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, last.Role)
	assert.Equal(t,
		"I apologize, but I encountered an error connecting to the server. Please ensure the backend is running.",
		last.Content)
	assert.False(t, s.Pending())
}

func TestSubmitWhitespaceIsIgnored(t *testing.T) {
	sender := newRecordingSender(echoReply)
	s := NewStore(sender)

	for _, text := range []string{"", "   ", "\t\n "} {
		ex, ok := s.SubmitUtterance(context.Background(), text)
		assert.False(t, ok)
		assert.Nil(t, ex)
	}

	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Pending())
	assert.Empty(t, sender.Calls())
}

func TestSubmitTrimsUtterance(t *testing.T) {
	sender := newRecordingSender(echoReply)
	s := NewStore(sender)

	ex, ok := s.SubmitUtterance(context.Background(), "  hello  \n")
	require.True(t, ok)
	assert.Equal(t, "hello", ex.Utterance)
	require.True(t, s.Settle(ex))

	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "hello", calls[0].utterance)
	assert.Equal(t, []string{
		"assistant:" + WelcomeText,
		"user:hello",
		"assistant:re: hello",
	}, contents(s.Transcript()))
}

func TestSubmitWhilePendingIsDropped(t *testing.T) {
	sender := newRecordingSender(echoReply)
	sender.gate = make(chan struct{})
	s := NewStore(sender)

	exA, ok := s.SubmitUtterance(context.Background(), "A")
	require.True(t, ok)

	exB, ok := s.SubmitUtterance(context.Background(), "B")
	assert.False(t, ok)
	assert.Nil(t, exB)
	assert.Same(t, exA, s.PendingExchange())

	close(sender.gate)
	require.True(t, s.Settle(exA))

	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "A", calls[0].utterance)
	assert.Equal(t, []string{
		"assistant:" + WelcomeText,
		"user:A",
		"assistant:re: A",
	}, contents(s.Transcript()))
}

func TestAppendOnlyOrderAndHistoryFraming(t *testing.T) {
	sender := newRecordingSender(echoReply)
	s := NewStore(sender)

	utterances := []string{"one", "two", "three", "four"}
	for _, u := range utterances {
		ex, ok := s.SubmitUtterance(context.Background(), u)
		require.True(t, ok)
		require.True(t, s.Settle(ex))
	}

	expected := []string{"assistant:" + WelcomeText}
	for _, u := range utterances {
		expected = append(expected, "user:"+u, "assistant:re: "+u)
	}
	assert.Equal(t, expected, contents(s.Transcript()))

	calls := sender.Calls()
	require.Len(t, calls, len(utterances))
	for k, call := range calls {
		// exchange k+1 carries the seed plus k complete prior exchanges
		require.Len(t, call.history, 2*k+1)
		assert.Equal(t, expected[:2*k+1], contents(call.history))
		for _, m := range call.history {
			assert.NotEqual(t, "user:"+call.utterance, fmt.Sprintf("%s:%s", m.Role, m.Content))
		}
	}
}

func TestHistorySnapshotIsIsolated(t *testing.T) {
	sender := newRecordingSender(echoReply)
	s := NewStore(sender)

	ex, ok := s.SubmitUtterance(context.Background(), "first")
	require.True(t, ok)
	require.True(t, s.Settle(ex))

	calls := sender.Calls()
	require.Len(t, calls, 1)
	// the snapshot handed to the sender must not observe later appends
	assert.Len(t, calls[0].history, 1)
	assert.Len(t, ex.History, 1)
	assert.Equal(t, 3, s.Len())
}

func TestEveryAcceptedSubmitSettlesOnce(t *testing.T) {
	i := 0
	sender := newRecordingSender(func(u string) Result {
		i++
		if i%2 == 0 {
			return NewFailureResult(errors.New("boom"))
		}
		return NewReplyResult("ok " + u)
	})
	s := NewStore(sender)

	for n := 0; n < 6; n++ {
		ex, ok := s.SubmitUtterance(context.Background(), fmt.Sprintf("q%d", n))
		require.True(t, ok)
		require.True(t, s.Settle(ex))
		assert.False(t, s.Pending())
	}

	tr := s.Transcript()
	assert.Equal(t, 6, tr.CountRole(RoleUser))
	assert.Equal(t, 7, tr.CountRole(RoleAssistant))
	assert.Equal(t, FallbackText, tr[4].Content)
}

func TestSettleWhileIdleIsNoop(t *testing.T) {
	s := NewStore(newRecordingSender(echoReply))

	assert.False(t, s.OnExchangeSettled(NewReplyResult("stray")))
	assert.Equal(t, 1, s.Len())
}

func TestSettleTwiceAppendsOnce(t *testing.T) {
	s := NewStore(newRecordingSender(echoReply))

	ex, ok := s.SubmitUtterance(context.Background(), "hello")
	require.True(t, ok)
	res := ex.Wait()

	assert.True(t, s.OnExchangeSettled(res))
	assert.False(t, s.OnExchangeSettled(res))
	assert.False(t, s.Settle(ex))
	assert.Equal(t, 3, s.Len())
}

func TestPanickingSenderStillSettles(t *testing.T) {
	s := NewStore(SenderFunc(func(context.Context, string, Transcript) Result {
		panic("kaboom")
	}))

	ex, ok := s.SubmitUtterance(context.Background(), "hello")
	require.True(t, ok)

	select {
	case <-ex.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("exchange never completed")
	}
	res := ex.Result()
	require.False(t, res.Ok())
	assert.Contains(t, res.Err().Error(), "kaboom")

	require.True(t, s.OnExchangeSettled(res))
	last, _ := s.Transcript().Last()
	assert.Equal(t, FallbackText, last.Content)
}

func TestNilSenderFails(t *testing.T) {
	s := NewStore(nil)

	ex, ok := s.SubmitUtterance(context.Background(), "hello")
	require.True(t, ok)
	require.True(t, s.Settle(ex))

	last, _ := s.Transcript().Last()
	assert.Equal(t, FallbackText, last.Content)
}

func TestTranscriptReturnsCopy(t *testing.T) {
	s := NewStore(nil)

	tr := s.Transcript()
	tr[0] = NewUserMessage("tampered")

	assert.Equal(t, WelcomeText, s.Transcript()[0].Content)
}
