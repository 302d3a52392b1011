package answer

import (
	"github.com/huandu/go-clone"
)

const (
	AnswererEcho   = "echo"
	AnswererOpenAI = "openai"
	AnswererOllama = "ollama"

	// Gemini speaks the OpenAI chat completions protocol on this endpoint.
	DefaultOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel         = "gemini-2.5-flash"

	AnswererFailureText = "I apologize, but I am experiencing a temporary technical issue with my AI core. " +
		"Please try again in a moment."
)

// Settings configures the answering service. Zero values are filled in by NewSettings.
type Settings struct {
	Port             int
	KnowledgePath    string
	Answerer         string
	Model            string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	SystemPromptPath string
	ShopName         string
	ShopURL          string
	ShopLocation     string
	MaxPromptTokens  int

	// AllowLocalBackend lets the openai answerer call plain-HTTP or local-network base URLs.
	AllowLocalBackend bool
}

func NewSettings() *Settings {
	return &Settings{
		Port:          8000,
		KnowledgePath: "data.json",
		Answerer:      AnswererOpenAI,
		Model:         DefaultModel,
		OpenAIBaseURL: DefaultOpenAIBaseURL,
		ShopName:      "Pamith Tech Solutions",
		ShopURL:       "www.pamithtech.com",
		ShopLocation:  "Baddegama",
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}
