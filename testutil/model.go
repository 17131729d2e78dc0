package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/skosovsky/glmtools/generate"
)

// Script is the output of one Generate call.
type Script struct {
	Fragments []generate.Fragment
	// Err is returned after the fragments instead of io.EOF.
	Err error
	// Hang makes the stream block after the fragments until its context ends.
	Hang bool
}

// Reply builds a script whose cumulative fragments grow by one part at a time.
func Reply(parts ...string) Script {
	return Script{Fragments: Cumulative(parts...)}
}

// Cumulative turns deltas into cumulative fragments.
func Cumulative(parts ...string) []generate.Fragment {
	out := make([]generate.Fragment, 0, len(parts))
	text := ""
	for _, p := range parts {
		text += p
		out = append(out, generate.Fragment{Text: text})
	}
	return out
}

// ScriptedModel is a generate.Model that replays scripts in order, one per Generate call, and
// records the prompts it was given.
type ScriptedModel struct {
	// GenerateErr, when set, is returned by every Generate call.
	GenerateErr error

	mu      sync.Mutex
	scripts []Script
	prompts []generate.Prompt
	params  []generate.Params
	closed  int
}

// NewScriptedModel returns a model replaying scripts.
func NewScriptedModel(scripts ...Script) *ScriptedModel {
	return &ScriptedModel{scripts: scripts}
}

// Generate starts the next script. It fails when the scripts are used up.
func (m *ScriptedModel) Generate(_ context.Context, prompt generate.Prompt, params generate.Params) (generate.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.params = append(m.params, params)
	if m.GenerateErr != nil {
		return nil, m.GenerateErr
	}
	if len(m.scripts) == 0 {
		return nil, errors.New("scripted model: no script left")
	}
	s := m.scripts[0]
	m.scripts = m.scripts[1:]
	return &scriptedStream{model: m, script: s}, nil
}

// Prompts returns the prompts passed to Generate so far.
func (m *ScriptedModel) Prompts() []generate.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generate.Prompt(nil), m.prompts...)
}

// Params returns the parameters passed to Generate so far.
func (m *ScriptedModel) Params() []generate.Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generate.Params(nil), m.params...)
}

// Calls returns how many times Generate was called.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Closed returns how many streams were closed.
func (m *ScriptedModel) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type scriptedStream struct {
	model  *ScriptedModel
	script Script
	pos    int
	closed bool
}

func (s *scriptedStream) Next(ctx context.Context) (generate.Fragment, error) {
	if s.closed {
		return generate.Fragment{}, errors.New("scripted model: stream closed")
	}
	if s.pos < len(s.script.Fragments) {
		f := s.script.Fragments[s.pos]
		s.pos++
		return f, nil
	}
	if s.script.Hang {
		<-ctx.Done()
		return generate.Fragment{}, ctx.Err()
	}
	if s.script.Err != nil {
		return generate.Fragment{}, s.script.Err
	}
	return generate.Fragment{}, io.EOF
}

func (s *scriptedStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.model.mu.Lock()
	s.model.closed++
	s.model.mu.Unlock()
	return nil
}

// FixedCounter reports the same token count for every prompt.
type FixedCounter int

// CountTokens returns c for any text.
func (c FixedCounter) CountTokens(string) (int, error) { return int(c), nil }

var (
	_ generate.Model        = (*ScriptedModel)(nil)
	_ generate.TokenCounter = FixedCounter(0)
)
