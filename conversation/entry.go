package conversation

import "strings"

// Entry is one turn of a conversation. Tool is set only for RoleTool. Image, when present, is
// shown in place of the text and is never rendered into a prompt.
type Entry struct {
	Role    Role
	Content string
	Tool    string
	Image   []byte
}

// String serializes e as a prompt block.
func (e Entry) String() string {
	var b strings.Builder
	e.writeTo(&b)
	return b.String()
}

func (e Entry) writeTo(b *strings.Builder) {
	b.WriteString(e.Role.Sentinel())
	switch e.Role {
	case RoleTool:
		b.WriteString(e.Tool)
	case RoleInterpreter:
		b.WriteString("interpreter")
	}
	b.WriteByte('\n')
	b.WriteString(e.Content)
}

// DisplayText renders e for a human reader. Tool calls and observations get a label, every
// other role shows its postprocessed content. Image entries have no text.
func (e Entry) DisplayText() string {
	if len(e.Image) > 0 {
		return ""
	}
	text := Postprocess(e.Content)
	switch e.Role {
	case RoleTool:
		return "Calling tool `" + e.Tool + "`:\n\n" + text
	case RoleObservation:
		return "Observation:\n```\n" + text + "\n```"
	}
	return text
}
