package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/go-go-golems/supportchat/pkg/conversation"
	"github.com/pkg/errors"
)

// LineChat is the plain-text front end used when stdin is not a terminal or
// when the TUI is disabled.
type LineChat struct {
	store *conversation.Store
	in    io.Reader
	out   io.Writer
	width int

	userColor      *color.Color
	assistantColor *color.Color
	faint          *color.Color
}

type LineOption func(*LineChat)

func WithWidth(width int) LineOption {
	return func(l *LineChat) {
		l.width = width
	}
}

func NewLineChat(store *conversation.Store, in io.Reader, out io.Writer, options ...LineOption) *LineChat {
	ret := &LineChat{
		store:          store,
		in:             in,
		out:            out,
		width:          80,
		userColor:      color.New(color.FgCyan, color.Bold),
		assistantColor: color.New(color.FgMagenta, color.Bold),
		faint:          color.New(color.Faint),
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// RunLines runs a line-oriented chat session until the input ends, the user
// types /quit, or ctx is cancelled.
func RunLines(ctx context.Context, store *conversation.Store, in io.Reader, out io.Writer, options ...LineOption) error {
	return NewLineChat(store, in, out, options...).Run(ctx)
}

func isQuit(line string) bool {
	switch line {
	case "/quit", "/exit", "/q":
		return true
	}
	return false
}

func (l *LineChat) Run(ctx context.Context) error {
	l.printTranscript()

	scanner := bufio.NewScanner(l.in)
	for {
		l.prompt()
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(l.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case isQuit(line):
			return nil
		case line == "/history":
			l.printTranscript()
			continue
		}

		ex, ok := l.store.SubmitUtterance(ctx, line)
		if !ok {
			continue
		}

		_, _ = l.faint.Fprintln(l.out, TypingText)

		select {
		case <-ex.Done():
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "chat interrupted")
		}
		l.store.Settle(ex)

		if last, ok := l.store.Transcript().Last(); ok {
			l.printMessage(last)
		}
	}
}

func (l *LineChat) prompt() {
	_, _ = l.userColor.Fprint(l.out, "> ")
}

func (l *LineChat) printTranscript() {
	for _, m := range l.store.Transcript() {
		l.printMessage(m)
	}
}

func (l *LineChat) printMessage(m conversation.Message) {
	label, c := "You", l.userColor
	if m.Role == conversation.RoleAssistant {
		label, c = "Assistant", l.assistantColor
	}
	_, _ = c.Fprintf(l.out, "%s:", label)
	_, _ = fmt.Fprintf(l.out, " %s\n", wrapWords(m.Content, l.width-len(label)-2))
}
