package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/supportchat/pkg/conversation"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTitle = "Pamith Tech Solutions support"
	TypingText   = "assistant is typing..."
)

// ExchangeSettledMsg carries the result of an exchange back into the update
// loop, where the store is settled.
type ExchangeSettledMsg struct {
	Exchange *conversation.Exchange
	Result   conversation.Result
}

type refreshMessageMsg struct {
	GoToBottom bool
}

// Model is the chat screen. It owns the store: every store call happens
// inside Update.
type Model struct {
	ctx   context.Context
	store *conversation.Store

	viewport viewport.Model
	textArea textarea.Model
	spinner  spinner.Model
	help     help.Model

	keyMap KeyMap
	style  *Style
	title  string

	renderer        Renderer
	rendererFactory RendererFactory

	width  int
	height int
}

type ModelOption func(*Model)

func WithRendererFactory(f RendererFactory) ModelOption {
	return func(m *Model) {
		m.rendererFactory = f
	}
}

func WithStyle(s *Style) ModelOption {
	return func(m *Model) {
		m.style = s
	}
}

func WithTitle(title string) ModelOption {
	return func(m *Model) {
		m.title = title
	}
}

func NewModel(ctx context.Context, store *conversation.Store, options ...ModelOption) Model {
	ret := Model{
		ctx:      ctx,
		store:    store,
		style:    DefaultStyles(),
		keyMap:   DefaultKeyMap,
		title:    DefaultTitle,
		viewport: viewport.New(0, 0),
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	for _, o := range options {
		o(&ret)
	}

	ret.textArea = textarea.New()
	ret.textArea.Placeholder = "Ask about an order, returns or products..."
	ret.textArea.ShowLineNumbers = false
	ret.textArea.SetHeight(2)
	ret.textArea.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ret.textArea.Focus()

	ret.viewport.SetContent(ret.messageView())
	ret.viewport.GotoBottom()

	return ret
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Store() *conversation.Store {
	return m.store
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.recomputeSize()
			return m, nil

		case key.Matches(msg, m.keyMap.ScrollUp):
			m.viewport.HalfViewUp()
			return m, nil

		case key.Matches(msg, m.keyMap.ScrollDown):
			m.viewport.HalfViewDown()
			return m, nil

		case key.Matches(msg, m.keyMap.SubmitMessage):
			return m, m.submit()

		default:
			if m.store.Pending() {
				// input is disabled until the reply arrives
				return m, nil
			}
			m.textArea, cmd = m.textArea.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateRenderer()
		m.recomputeSize()
		return m, nil

	case ExchangeSettledMsg:
		return m, m.settle(msg)

	case spinner.TickMsg:
		if !m.store.Pending() {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshMessageMsg:
		m.viewport.SetContent(m.messageView())
		if msg.GoToBottom {
			m.viewport.GotoBottom()
		}
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	if !m.store.Pending() {
		m.textArea, cmd = m.textArea.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) submit() tea.Cmd {
	if m.store.Pending() {
		return nil
	}

	ex, ok := m.store.SubmitUtterance(m.ctx, m.textArea.Value())
	if !ok {
		if strings.TrimSpace(m.textArea.Value()) == "" {
			m.textArea.Reset()
		}
		return nil
	}

	m.textArea.Reset()
	m.textArea.Blur()
	m.recomputeSize()

	return tea.Batch(
		waitForExchange(ex),
		m.spinner.Tick,
	)
}

func waitForExchange(ex *conversation.Exchange) tea.Cmd {
	return func() tea.Msg {
		return ExchangeSettledMsg{
			Exchange: ex,
			Result:   ex.Wait(),
		}
	}
}

func (m *Model) settle(msg ExchangeSettledMsg) tea.Cmd {
	if msg.Exchange != nil && msg.Exchange != m.store.PendingExchange() {
		log.Warn().Str("exchange", msg.Exchange.ID.String()).Msg("ignoring result of an exchange that is not pending")
		return nil
	}
	if !m.store.OnExchangeSettled(msg.Result) {
		return nil
	}

	cmd := m.textArea.Focus()
	m.recomputeSize()
	return cmd
}

func (m *Model) updateRenderer() {
	if m.rendererFactory == nil {
		return
	}
	w, _ := m.style.AssistantMessage.GetFrameSize()
	r, err := m.rendererFactory(m.contentWidth() - w)
	if err != nil {
		log.Warn().Err(err).Msg("could not create markdown renderer")
		m.renderer = nil
		return
	}
	m.renderer = r
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func (m *Model) recomputeSize() {
	headerHeight := lipgloss.Height(m.headerView())
	inputHeight := lipgloss.Height(m.inputView())
	helpHeight := lipgloss.Height(m.help.View(m.keyMap))

	newHeight := m.height - headerHeight - inputHeight - helpHeight
	if newHeight < 0 {
		newHeight = 0
	}
	m.viewport.Width = m.width
	m.viewport.Height = newHeight
	m.viewport.YPosition = headerHeight

	w, _ := m.style.FocusedInput.GetFrameSize()
	m.textArea.SetWidth(m.contentWidth() - w)
	m.help.Width = m.width

	m.viewport.SetContent(m.messageView())
	m.viewport.GotoBottom()
}

func (m Model) headerView() string {
	return m.style.Header.Render(m.title)
}

func (m Model) messageView() string {
	var sb strings.Builder
	width := m.contentWidth()

	for _, msg := range m.store.Transcript() {
		var v string
		switch msg.Role {
		case conversation.RoleAssistant:
			w, _ := m.style.AssistantMessage.GetFrameSize()
			body := renderContent(m.renderer, msg.Content, width-w)
			v = m.style.AssistantLabel.Render("Assistant") + "\n" +
				m.style.AssistantMessage.Width(width-w).Render(body)
		default:
			w, _ := m.style.UserMessage.GetFrameSize()
			body := wrapWords(msg.Content, width-w)
			v = m.style.UserLabel.Render("You") + "\n" +
				m.style.UserMessage.Width(width-w).Render(body)
		}
		sb.WriteString(v)
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m Model) inputView() string {
	if m.store.Pending() {
		return m.style.Typing.Render(m.spinner.View() + " " + TypingText)
	}
	return m.style.FocusedInput.Render(m.textArea.View())
}

func (m Model) View() string {
	return m.headerView() + "\n" +
		m.viewport.View() + "\n" +
		m.inputView() + "\n" +
		m.help.View(m.keyMap)
}
