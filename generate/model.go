package generate

import (
	"context"
	"unicode/utf8"

	"github.com/skosovsky/glmtools"
	"github.com/skosovsky/glmtools/conversation"
)

// Fragment is one step of model output. Text is cumulative: the whole decoded reply so far.
// Special is set when the backend knows the newest token is a control token.
type Fragment struct {
	Text    string
	Special bool
}

// Stream yields fragments until it returns io.EOF.
type Stream interface {
	Next(ctx context.Context) (Fragment, error)
	Close() error
}

// Prompt is the model input. Text is the fully rendered prompt; the structured fields let
// backends that build their own input (chat APIs) use them instead.
type Prompt struct {
	Text    string
	System  string
	Tools   []glmtools.Definition
	History []conversation.Entry
}

// Model starts a generation for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt Prompt, params Params) (Stream, error)
}

// TokenCounter measures prompt length in model tokens.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

// RuneCounter estimates one token per rune. It overestimates for Latin text, which keeps the
// context window check on the safe side when no tokenizer is available.
type RuneCounter struct{}

// CountTokens returns the number of runes in text. It never fails.
func (RuneCounter) CountTokens(text string) (int, error) {
	return utf8.RuneCountInString(text), nil
}

// Params are the sampling parameters for one turn.
type Params struct {
	Temperature       float64  `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP              float64  `json:"top_p" yaml:"top_p" toml:"top_p"`
	RepetitionPenalty float64  `json:"repetition_penalty" yaml:"repetition_penalty" toml:"repetition_penalty"`
	MaxNewTokens      int      `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	Stop              []string `json:"stop,omitempty" yaml:"stop,omitempty" toml:"stop,omitempty"`
}

// DefaultParams returns the sampling defaults used by the CLI and the HTTP service.
func DefaultParams() Params {
	return Params{
		Temperature:       0.95,
		TopP:              0.8,
		RepetitionPenalty: 1.2,
		MaxNewTokens:      1024,
		Stop:              []string{conversation.SentinelUser, conversation.SentinelObservation},
	}
}
