package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/supportchat/pkg/exchange"
	"github.com/go-go-golems/supportchat/pkg/security"
	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// Answerer produces a reply for a prompt.
type Answerer interface {
	Answer(ctx context.Context, p *Prompt) (string, error)
}

type AnswererFunc func(ctx context.Context, p *Prompt) (string, error)

func (f AnswererFunc) Answer(ctx context.Context, p *Prompt) (string, error) {
	return f(ctx, p)
}

// EchoAnswerer replies without calling a model. Useful to run the client
// against a local service.
type EchoAnswerer struct{}

func (EchoAnswerer) Answer(_ context.Context, p *Prompt) (string, error) {
	return fmt.Sprintf("You said: %s (history: %d messages)", p.UserMessage, len(p.History)), nil
}

type OpenAIAnswerer struct {
	client *go_openai.Client
	model  string
}

func NewOpenAIAnswerer(baseURL, apiKey, model string) *OpenAIAnswerer {
	if apiKey == "" {
		log.Warn().Msg("no API key configured for the openai answerer, requests will likely fail")
	}
	config := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &OpenAIAnswerer{
		client: go_openai.NewClientWithConfig(config),
		model:  model,
	}
}

func openAIRole(wireRole string) string {
	if wireRole == exchange.WireRoleModel {
		return go_openai.ChatMessageRoleAssistant
	}
	return go_openai.ChatMessageRoleUser
}

func (o *OpenAIAnswerer) Answer(ctx context.Context, p *Prompt) (string, error) {
	turns := p.Turns()
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    openAIRole(t.Role),
			Content: t.Content,
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, go_openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

type OllamaAnswerer struct {
	client *api.Client
	model  string
}

// NewOllamaAnswerer connects to the server named by OLLAMA_HOST.
func NewOllamaAnswerer(model string) (*OllamaAnswerer, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, errors.Wrap(err, "could not create ollama client")
	}
	return &OllamaAnswerer{client: client, model: model}, nil
}

func (o *OllamaAnswerer) Answer(ctx context.Context, p *Prompt) (string, error) {
	turns := p.Turns()
	msgs := make([]api.Message, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == exchange.WireRoleModel {
			role = "assistant"
		}
		msgs = append(msgs, api.Message{Role: role, Content: t.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &stream,
	}

	var sb strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "ollama chat failed")
	}

	return sb.String(), nil
}

// NewAnswerer builds the answerer selected in s.
func NewAnswerer(s *Settings) (Answerer, error) {
	switch s.Answerer {
	case AnswererEcho:
		return EchoAnswerer{}, nil
	case AnswererOpenAI, "":
		policy := security.HostedAPIPolicy
		if s.AllowLocalBackend {
			policy = security.LocalServicePolicy
		}
		if err := security.ValidateEndpoint(s.OpenAIBaseURL, policy); err != nil {
			return nil, errors.Wrap(err, "openai base URL rejected (use --allow-local-backend for local servers)")
		}
		return NewOpenAIAnswerer(s.OpenAIBaseURL, s.OpenAIAPIKey, s.Model), nil
	case AnswererOllama:
		return NewOllamaAnswerer(s.Model)
	default:
		return nil, errors.Errorf("unknown answerer %q", s.Answerer)
	}
}
