package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rs/zerolog/log"
)

// Renderer turns an assistant reply into terminal output. glamour's
// TermRenderer satisfies it.
type Renderer interface {
	Render(in string) (string, error)
}

// RendererFactory builds a renderer for the given content width.
type RendererFactory func(width int) (Renderer, error)

func NewMarkdownRenderer(width int) (Renderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func wrapWords(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.String(text, width)
}

// renderContent renders with r when set, and falls back to plain wrapping.
func renderContent(r Renderer, text string, width int) string {
	if r == nil {
		return wrapWords(text, width)
	}
	out, err := r.Render(text)
	if err != nil {
		log.Debug().Err(err).Msg("could not render markdown, using plain text")
		return wrapWords(text, width)
	}
	return strings.Trim(out, "\n")
}
