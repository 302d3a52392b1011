package answer

import (
	"bytes"
	"os"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/go-go-golems/supportchat/pkg/exchange"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultSystemPromptTemplate = `You are an AI-powered, helpful, and polite customer support chatbot for an E-commerce platform.
Your main responsibilities are: answering order status, return policy, and product recommendation questions.
Shop Name: {{ .ShopName }}.
Shop URL: {{ .ShopURL }}.
Shop Location: {{ .ShopLocation }}.

CRITICAL INSTRUCTION: Use the following EXTERNAL_DATA to answer factual questions.
You must intelligently parse the user's request (e.g., find an order ID like ORD123, or a keyword like 'return policy')
and provide the specific information found in this JSON object:

EXTERNAL_DATA:
{{ .Knowledge | mustToPrettyJson }}

If you are greeting the user or responding to a general phrase like 'how are you', respond conversationally.
If you cannot find the answer in the provided data, politely state that you cannot assist with that specific query.
`

// Turn is one entry of the prompt sent to a model. Roles are wire roles
// ("user" or "model").
type Turn struct {
	Role    string
	Content string
}

// Prompt is what an Answerer receives. The system prompt travels as the first
// user turn, so backends without a system role see the same conversation.
type Prompt struct {
	System      string
	History     []Turn
	UserMessage string
}

func (p *Prompt) Turns() []Turn {
	ret := make([]Turn, 0, len(p.History)+2)
	ret = append(ret, Turn{Role: exchange.WireRoleUser, Content: p.System})
	ret = append(ret, p.History...)
	ret = append(ret, Turn{Role: exchange.WireRoleUser, Content: p.UserMessage})
	return ret
}

type promptData struct {
	ShopName     string
	ShopURL      string
	ShopLocation string
	Knowledge    Knowledge
}

type PromptBuilder struct {
	tmpl      *template.Template
	data      promptData
	maxTokens int
	counter   *TokenCounter
}

// NewPromptBuilder parses the system prompt template (the file at
// s.SystemPromptPath, or the built-in one) with sprig functions available.
func NewPromptBuilder(s *Settings, knowledge Knowledge) (*PromptBuilder, error) {
	text := DefaultSystemPromptTemplate
	if s.SystemPromptPath != "" {
		b, err := os.ReadFile(s.SystemPromptPath)
		if err != nil {
			return nil, errors.Wrapf(err, "could not read system prompt %s", s.SystemPromptPath)
		}
		text = string(b)
	}

	tmpl, err := template.New("system-prompt").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse system prompt template")
	}

	if knowledge == nil {
		knowledge = Knowledge{}
	}

	ret := &PromptBuilder{
		tmpl: tmpl,
		data: promptData{
			ShopName:     s.ShopName,
			ShopURL:      s.ShopURL,
			ShopLocation: s.ShopLocation,
			Knowledge:    knowledge,
		},
		maxTokens: s.MaxPromptTokens,
	}

	if s.MaxPromptTokens > 0 {
		ret.counter, err = NewTokenCounter()
		if err != nil {
			return nil, err
		}
	}

	return ret, nil
}

func (pb *PromptBuilder) SystemPrompt() (string, error) {
	var buf bytes.Buffer
	if err := pb.tmpl.Execute(&buf, pb.data); err != nil {
		return "", errors.Wrap(err, "could not render system prompt")
	}
	return buf.String(), nil
}

// Build turns a validated request into a prompt. When a token budget is set,
// the oldest history turns are dropped until the prompt fits.
func (pb *PromptBuilder) Build(req *exchange.Request) (*Prompt, error) {
	system, err := pb.SystemPrompt()
	if err != nil {
		return nil, err
	}

	history := make([]Turn, 0, len(req.History))
	for _, h := range req.History {
		history = append(history, Turn{Role: h.Role, Content: h.Content})
	}

	p := &Prompt{
		System:      system,
		History:     history,
		UserMessage: req.UserMessage,
	}

	if pb.counter != nil {
		dropped := pb.counter.Fit(p, pb.maxTokens)
		if dropped > 0 {
			log.Debug().
				Int("dropped", dropped).
				Int("max_tokens", pb.maxTokens).
				Msg("trimmed history to fit prompt budget")
		}
	}

	return p, nil
}
