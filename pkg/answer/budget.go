package answer

import (
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// per-turn overhead of chat formats, roughly what OpenAI documents for cl100k models
const tokensPerTurn = 4

type TokenCounter struct {
	codec tokenizer.Codec
}

func NewTokenCounter() (*TokenCounter, error) {
	c, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "could not load tokenizer")
	}
	return &TokenCounter{codec: c}, nil
}

func (tc *TokenCounter) Count(s string) int {
	ids, _, err := tc.codec.Encode(s)
	if err != nil {
		return len(s) / 4
	}
	return len(ids)
}

func (tc *TokenCounter) CountPrompt(p *Prompt) int {
	n := 0
	for _, t := range p.Turns() {
		n += tc.Count(t.Content) + tokensPerTurn
	}
	return n
}

// Fit drops history turns from the front until p fits in maxTokens, and
// returns how many were dropped. The system prompt and the current message
// are always kept, even if they alone exceed the budget.
func (tc *TokenCounter) Fit(p *Prompt, maxTokens int) int {
	if maxTokens <= 0 {
		return 0
	}

	total := tc.CountPrompt(p)
	dropped := 0
	for total > maxTokens && len(p.History) > 0 {
		total -= tc.Count(p.History[0].Content) + tokensPerTurn
		p.History = p.History[1:]
		dropped++
	}
	return dropped
}
