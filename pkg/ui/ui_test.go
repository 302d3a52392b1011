package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/supportchat/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatedSender struct {
	release chan struct{}
	calls   chan string
	reply   string
	err     error
}

func newGatedSender(reply string, err error) *gatedSender {
	return &gatedSender{
		release: make(chan struct{}),
		calls:   make(chan string, 16),
		reply:   reply,
		err:     err,
	}
}

func (g *gatedSender) Send(_ context.Context, utterance string, _ conversation.Transcript) conversation.Result {
	g.calls <- utterance
	<-g.release
	if g.err != nil {
		return conversation.NewFailureResult(g.err)
	}
	return conversation.NewReplyResult(g.reply)
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func pressEnter(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

type staticRenderer struct{}

func (staticRenderer) Render(in string) (string, error) {
	return "**" + in + "**", nil
}

func TestModelShowsGreeting(t *testing.T) {
	store := conversation.NewStore(newGatedSender("", nil))
	m := sized(t, NewModel(context.Background(), store))

	view := m.View()
	assert.Contains(t, view, DefaultTitle)
	assert.Contains(t, view, "Welcome to Pamith Tech Solutions")
	assert.NotContains(t, view, TypingText)
}

func TestModelSubmitAndSettle(t *testing.T) {
	sender := newGatedSender("Your order ships tomorrow.", nil)
	store := conversation.NewStore(sender)
	m := sized(t, NewModel(context.Background(), store))

	m = typeText(t, m, "Where is my order?")
	m, cmd := pressEnter(t, m)
	require.NotNil(t, cmd)

	assert.Equal(t, "Where is my order?", <-sender.calls)
	assert.True(t, store.Pending())
	assert.Contains(t, m.View(), TypingText)

	// typing and submitting while pending does nothing
	m = typeText(t, m, "hello?")
	m, cmd = pressEnter(t, m)
	assert.Nil(t, cmd)
	assert.Equal(t, 2, store.Len())

	ex := store.PendingExchange()
	close(sender.release)
	next, _ := m.Update(ExchangeSettledMsg{Exchange: ex, Result: ex.Wait()})
	m = next.(Model)

	assert.False(t, store.Pending())
	tr := store.Transcript()
	require.Len(t, tr, 3)
	assert.Equal(t, "Your order ships tomorrow.", tr[2].Content)
	assert.NotContains(t, m.View(), TypingText)
	assert.Contains(t, m.View(), "Your order ships tomorrow.")
	assert.Empty(t, sender.calls)
}

func TestModelWaitCommandDeliversSettledMsg(t *testing.T) {
	sender := newGatedSender("done", nil)
	store := conversation.NewStore(sender)
	m := NewModel(context.Background(), store)

	m = typeText(t, m, "hi")
	m, _ = pressEnter(t, m)
	ex := store.PendingExchange()
	require.NotNil(t, ex)

	close(sender.release)
	msg := waitForExchange(ex)()
	settled, ok := msg.(ExchangeSettledMsg)
	require.True(t, ok)
	assert.Equal(t, ex, settled.Exchange)
	assert.Equal(t, "done", settled.Result.Reply())

	next, _ := m.Update(settled)
	_ = next.(Model)
	assert.False(t, store.Pending())
}

func TestModelFailureShowsFallback(t *testing.T) {
	sender := newGatedSender("", errors.New("connection refused"))
	store := conversation.NewStore(sender)
	m := sized(t, NewModel(context.Background(), store))

	m = typeText(t, m, "anyone there?")
	m, _ = pressEnter(t, m)
	ex := store.PendingExchange()
	close(sender.release)
	next, _ := m.Update(ExchangeSettledMsg{Exchange: ex, Result: ex.Wait()})
	m = next.(Model)

	last, ok := store.Transcript().Last()
	require.True(t, ok)
	assert.Equal(t, conversation.FallbackText, last.Content)
	assert.Contains(t, m.View(), "I apologize, but I encountered")
}

func TestModelIgnoresWhitespace(t *testing.T) {
	sender := newGatedSender("", nil)
	store := conversation.NewStore(sender)
	m := NewModel(context.Background(), store)

	m = typeText(t, m, "   ")
	_, cmd := pressEnter(t, m)
	assert.Nil(t, cmd)
	assert.False(t, store.Pending())
	assert.Equal(t, 1, store.Len())
	assert.Empty(t, sender.calls)
}

func TestModelIgnoresStaleSettlement(t *testing.T) {
	store := conversation.NewStore(newGatedSender("", nil))
	m := NewModel(context.Background(), store)

	next, cmd := m.Update(ExchangeSettledMsg{Result: conversation.NewReplyResult("stray")})
	_ = next.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, 1, store.Len())
}

func TestModelUsesRenderer(t *testing.T) {
	store := conversation.NewStore(newGatedSender("", nil), conversation.WithWelcome("hi there"))
	m := NewModel(context.Background(), store, WithRendererFactory(func(int) (Renderer, error) {
		return staticRenderer{}, nil
	}))
	m = sized(t, m)
	assert.Contains(t, m.View(), "**hi there**")
}

func TestModelQuit(t *testing.T) {
	m := NewModel(context.Background(), conversation.NewStore(newGatedSender("", nil)))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
