package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/skosovsky/glmtools"
)

// ToolPreamble opens the SYSTEM block when tools are offered to the model.
const ToolPreamble = "Answer the following questions as best as you can. You have access to the following tools:\n"

// ErrMalformedPrompt is returned by Parse for text that does not follow the block layout.
var ErrMalformedPrompt = errors.New("malformed prompt")

// RenderPrompt builds the linear model input: a SYSTEM block, one block per history entry, then
// an empty assistant block as the generation cursor. With tools, the SYSTEM block carries the
// tool preamble and the schema instead of system.
func RenderPrompt(system string, tools []glmtools.Definition, history []Entry) (string, error) {
	var b strings.Builder
	b.WriteString(SentinelSystem)
	b.WriteByte('\n')
	if len(tools) == 0 {
		b.WriteString(system)
	} else {
		schema, err := EncodeTools(tools)
		if err != nil {
			return "", err
		}
		b.WriteString(ToolPreamble)
		b.WriteString(schema)
	}
	for _, e := range history {
		e.writeTo(&b)
	}
	b.WriteString(SentinelAssistant)
	b.WriteByte('\n')
	return b.String(), nil
}

// EncodeTools serializes tool definitions on one line with ", " and ": " separators, the layout
// GLM models saw in training. Non-ASCII and HTML characters are left as they are.
func EncodeTools(tools []glmtools.Definition) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tools); err != nil {
		return "", fmt.Errorf("encode tool schema: %w", err)
	}
	return spaceSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// spaceSeparators puts a space after every ',' and ':' of compact JSON outside string literals.
func spaceSeparators(compact []byte) string {
	var b strings.Builder
	b.Grow(len(compact) + len(compact)/8)
	inString, escaped := false, false
	for _, c := range compact {
		b.WriteByte(c)
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && (c == ',' || c == ':'):
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// Parsed is a prompt split back into its parts.
type Parsed struct {
	System  string
	Entries []Entry
	// Cursor is true when the prompt ends with the empty assistant block.
	Cursor bool
}

// Parse splits a prompt produced by RenderPrompt back into entries. Roles sharing the assistant
// sentinel are told apart by the text that follows it. Content containing a sentinel cannot be
// recovered, so Parse is only an inverse for sentinel-free content.
func Parse(prompt string) (Parsed, error) {
	var out Parsed
	blocks, err := splitBlocks(prompt)
	if err != nil {
		return out, err
	}
	if len(blocks) == 0 || blocks[0].sentinel != SentinelSystem {
		return out, fmt.Errorf("%w: missing system block", ErrMalformedPrompt)
	}
	sys, ok := strings.CutPrefix(blocks[0].body, "\n")
	if !ok {
		return out, fmt.Errorf("%w: system block without newline", ErrMalformedPrompt)
	}
	out.System = sys
	blocks = blocks[1:]
	if n := len(blocks); n > 0 && blocks[n-1].sentinel == SentinelAssistant && blocks[n-1].body == "\n" {
		out.Cursor = true
		blocks = blocks[:n-1]
	}
	for _, blk := range blocks {
		e, err := blk.entry()
		if err != nil {
			return Parsed{}, err
		}
		out.Entries = append(out.Entries, e)
	}
	return out, nil
}

type block struct {
	sentinel string
	body     string
}

func (blk block) entry() (Entry, error) {
	head, content, ok := strings.Cut(blk.body, "\n")
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s block without newline", ErrMalformedPrompt, blk.sentinel)
	}
	switch blk.sentinel {
	case SentinelSystem:
		return Entry{Role: RoleSystem, Content: content}, checkHead(blk, head)
	case SentinelUser:
		return Entry{Role: RoleUser, Content: content}, checkHead(blk, head)
	case SentinelObservation:
		return Entry{Role: RoleObservation, Content: content}, checkHead(blk, head)
	}
	switch head {
	case "":
		return Entry{Role: RoleAssistant, Content: content}, nil
	case "interpreter":
		return Entry{Role: RoleInterpreter, Content: content}, nil
	}
	return Entry{Role: RoleTool, Tool: head, Content: content}, nil
}

func checkHead(blk block, head string) error {
	if head != "" {
		return fmt.Errorf("%w: unexpected %q after %s", ErrMalformedPrompt, head, blk.sentinel)
	}
	return nil
}

func splitBlocks(prompt string) ([]block, error) {
	var blocks []block
	rest := prompt
	for rest != "" {
		sentinel := leadingSentinel(rest)
		if sentinel == "" {
			return nil, fmt.Errorf("%w: text outside a block", ErrMalformedPrompt)
		}
		rest = rest[len(sentinel):]
		end := nextSentinel(rest)
		blocks = append(blocks, block{sentinel: sentinel, body: rest[:end]})
		rest = rest[end:]
	}
	return blocks, nil
}

func leadingSentinel(s string) string {
	for _, sentinel := range Sentinels {
		if strings.HasPrefix(s, sentinel) {
			return sentinel
		}
	}
	return ""
}

func nextSentinel(s string) int {
	end := len(s)
	for _, sentinel := range Sentinels {
		if i := strings.Index(s, sentinel); i >= 0 && i < end {
			end = i
		}
	}
	return end
}
