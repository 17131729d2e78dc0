package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/skosovsky/glmtools"
)

// ToolCallParser extracts a tool call from the text a model produced before handing off.
type ToolCallParser interface {
	Parse(text string) (glmtools.ToolCall, error)
}

// ErrBadToolCall is wrapped by every GLMParser failure.
var ErrBadToolCall = errors.New("bad tool call")

// GLMParser reads the tool call layout used by GLM chat models: the tool name on the first line,
// then a fenced block holding either tool_call(key=value, ...) with Python literals or a JSON
// object of arguments.
type GLMParser struct{}

// Parse reads the call in text. Failures wrap ErrBadToolCall and name the tool when it is known.
func (GLMParser) Parse(text string) (glmtools.ToolCall, error) {
	text = strings.TrimSpace(text)
	name, body, ok := strings.Cut(text, "\n")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return glmtools.ToolCall{}, fmt.Errorf("%w: missing tool name line", ErrBadToolCall)
	}
	body = stripFence(body)
	var (
		params map[string]any
		err    error
	)
	switch {
	case strings.HasPrefix(body, "{"):
		params, err = parseJSONArgs(body)
	case strings.HasPrefix(body, "tool_call(") && strings.HasSuffix(body, ")"):
		params, err = parseKwargs(body[len("tool_call(") : len(body)-1])
	default:
		err = errors.New("expected tool_call(...) or a JSON object")
	}
	if err != nil {
		return glmtools.ToolCall{}, fmt.Errorf("%w for %s: %w", ErrBadToolCall, name, err)
	}
	return glmtools.ToolCall{Name: name, Params: params}, nil
}

func stripFence(body string) string {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "```") {
		return body
	}
	if _, rest, ok := strings.Cut(body, "\n"); ok {
		body = rest
	} else {
		body = strings.TrimPrefix(body, "```")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(body), "```"))
}

func parseJSONArgs(body string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after arguments")
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = normalizeNumbers(v)
	}
	return out, nil
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = normalizeNumbers(x[k])
		}
	}
	return v
}

// parseKwargs reads `a=1, b='x', c=(1, 2)` into a map.
func parseKwargs(src string) (map[string]any, error) {
	s := &literalScanner{src: src}
	out := map[string]any{}
	for {
		s.skipSpace()
		if s.done() {
			return out, nil
		}
		key := s.ident()
		if key == "" {
			return nil, s.errorf("expected argument name")
		}
		s.skipSpace()
		if !s.accept('=') {
			return nil, s.errorf("expected '=' after %s", key)
		}
		v, err := s.value()
		if err != nil {
			return nil, err
		}
		if _, dup := out[key]; dup {
			return nil, s.errorf("argument %s repeated", key)
		}
		out[key] = v
		s.skipSpace()
		if !s.done() && !s.accept(',') {
			return nil, s.errorf("expected ',' between arguments")
		}
	}
}

// literalScanner parses the Python literal subset models emit in tool calls: strings, numbers,
// True/False/None, tuples, lists and dicts.
type literalScanner struct {
	src string
	pos int
}

func (s *literalScanner) done() bool { return s.pos >= len(s.src) }

func (s *literalScanner) peek() byte {
	if s.done() {
		return 0
	}
	return s.src[s.pos]
}

func (s *literalScanner) accept(c byte) bool {
	if s.peek() == c && !s.done() {
		s.pos++
		return true
	}
	return false
}

func (s *literalScanner) skipSpace() {
	for !s.done() && unicode.IsSpace(rune(s.src[s.pos])) {
		s.pos++
	}
}

func (s *literalScanner) errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", s.pos, fmt.Sprintf(format, args...))
}

func (s *literalScanner) ident() string {
	start := s.pos
	for !s.done() {
		c := s.src[s.pos]
		if c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || (s.pos > start && '0' <= c && c <= '9') {
			s.pos++
			continue
		}
		break
	}
	return s.src[start:s.pos]
}

func (s *literalScanner) value() (any, error) {
	s.skipSpace()
	switch c := s.peek(); {
	case s.done():
		return nil, s.errorf("expected a value")
	case c == '\'' || c == '"':
		return s.str()
	case c == '(':
		return s.sequence('(', ')')
	case c == '[':
		return s.sequence('[', ']')
	case c == '{':
		return s.dict()
	case c == '-' || c == '+' || c == '.' || ('0' <= c && c <= '9'):
		return s.number()
	}
	switch word := s.ident(); word {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	case "":
		return nil, s.errorf("unexpected %q", s.peek())
	default:
		return nil, s.errorf("unsupported value %s", word)
	}
}

func (s *literalScanner) str() (string, error) {
	quote := s.src[s.pos]
	s.pos++
	var b strings.Builder
	for !s.done() {
		c := s.src[s.pos]
		s.pos++
		switch {
		case c == quote:
			return b.String(), nil
		case c == '\\' && !s.done():
			e := s.src[s.pos]
			s.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", s.errorf("unterminated string")
}

func (s *literalScanner) number() (any, error) {
	start := s.pos
	if s.peek() == '-' || s.peek() == '+' {
		s.pos++
	}
	isFloat := false
scan:
	for !s.done() {
		c := s.src[s.pos]
		switch {
		case '0' <= c && c <= '9', c == '_':
		case c == '.' || c == 'e' || c == 'E':
			isFloat = true
		case (c == '-' || c == '+') && (s.src[s.pos-1] == 'e' || s.src[s.pos-1] == 'E'):
		default:
			break scan
		}
		s.pos++
	}
	lit := strings.ReplaceAll(s.src[start:s.pos], "_", "")
	if !isFloat {
		if n, err := strconv.Atoi(lit); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, s.errorf("bad number %q", lit)
	}
	return f, nil
}

func (s *literalScanner) sequence(open, closing byte) ([]any, error) {
	s.accept(open)
	out := []any{}
	for {
		s.skipSpace()
		if s.accept(closing) {
			return out, nil
		}
		v, err := s.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		s.skipSpace()
		if s.accept(closing) {
			return out, nil
		}
		if !s.accept(',') {
			return nil, s.errorf("expected ',' or %q", closing)
		}
	}
}

func (s *literalScanner) dict() (map[string]any, error) {
	s.accept('{')
	out := map[string]any{}
	for {
		s.skipSpace()
		if s.accept('}') {
			return out, nil
		}
		if c := s.peek(); c != '\'' && c != '"' {
			return nil, s.errorf("dict keys must be strings")
		}
		key, err := s.str()
		if err != nil {
			return nil, err
		}
		s.skipSpace()
		if !s.accept(':') {
			return nil, s.errorf("expected ':' after key %q", key)
		}
		v, err := s.value()
		if err != nil {
			return nil, err
		}
		out[key] = v
		s.skipSpace()
		if s.accept('}') {
			return out, nil
		}
		if !s.accept(',') {
			return nil, s.errorf("expected ',' or '}'")
		}
	}
}
