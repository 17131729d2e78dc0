// Package openaicompat implements generate.Model over an OpenAI-compatible completions
// endpoint, such as the ones served by vLLM or the GLM openai_api demo. The rendered prompt is
// sent as a raw completion so the sentinel protocol reaches the model unchanged.
//
// Completion servers swallow the stop sequence that ended a generation and only report
// finish_reason "stop". When tools were offered and the text reads as a tool call (a tool name
// on the first line followed by the call), the stream restores the missing observation
// sentinel so the caller still sees the hand-off. Any other stop ends the stream like a user
// sentinel would.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/skosovsky/glmtools/conversation"
	"github.com/skosovsky/glmtools/generate"
)

// Config locates the endpoint.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Backend is a generate.Model talking to one endpoint and model.
type Backend struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New returns a Backend for cfg. Model is required; an empty BaseURL uses the library default.
func New(cfg Config, opts ...Option) (*Backend, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("openaicompat: model must not be empty")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	b := &Backend{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Generate starts a streaming completion for prompt.Text.
func (b *Backend) Generate(ctx context.Context, prompt generate.Prompt, params generate.Params) (generate.Stream, error) {
	req := openai.CompletionRequest{
		Model:       b.model,
		Prompt:      prompt.Text,
		MaxTokens:   params.MaxNewTokens,
		Temperature: float32(params.Temperature),
		TopP:        float32(params.TopP),
		Stop:        params.Stop,
	}
	if params.RepetitionPenalty != 0 && params.RepetitionPenalty != 1 {
		b.logger.Debug("repetition penalty is not part of the completions API, not sent",
			"repetition_penalty", params.RepetitionPenalty)
	}
	s, err := b.client.CreateCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openaicompat: start completion: %w", err)
	}
	st := &stream{s: s, tools: make(map[string]struct{}, len(prompt.Tools))}
	for _, def := range prompt.Tools {
		st.tools[def.Name] = struct{}{}
	}
	return st, nil
}

const finishStop = "stop"

// stream turns the delta events of a completion stream into cumulative fragments.
type stream struct {
	s      *openai.CompletionStream
	text   strings.Builder
	tools  map[string]struct{}
	finish string
	// restored is set once the observation sentinel was synthesized.
	restored bool
}

func (st *stream) Next(ctx context.Context) (generate.Fragment, error) {
	for {
		if err := ctx.Err(); err != nil {
			return generate.Fragment{}, err
		}
		resp, err := st.s.Recv()
		if errors.Is(err, io.EOF) {
			if st.finish == finishStop && !st.restored && st.toolCall() {
				st.restored = true
				return generate.Fragment{Text: st.text.String() + conversation.SentinelObservation, Special: true}, nil
			}
			return generate.Fragment{}, io.EOF
		}
		if err != nil {
			return generate.Fragment{}, fmt.Errorf("openaicompat: read completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.FinishReason != "" {
			st.finish = choice.FinishReason
		}
		if choice.Text == "" {
			continue
		}
		st.text.WriteString(choice.Text)
		return generate.Fragment{Text: st.text.String()}, nil
	}
}

// toolCall reports whether the text so far names an offered tool on its first line and carries
// a call body after it.
func (st *stream) toolCall() bool {
	if len(st.tools) == 0 {
		return false
	}
	name, body, ok := strings.Cut(strings.TrimLeft(st.text.String(), " \n"), "\n")
	if !ok || strings.TrimSpace(body) == "" {
		return false
	}
	_, known := st.tools[strings.TrimSpace(name)]
	return known
}

func (st *stream) Close() error {
	return st.s.Close()
}

var _ generate.Model = (*Backend)(nil)
