package conversation

import "fmt"

// Sentinel tokens delimiting prompt blocks.
const (
	SentinelSystem      = "<|system|>"
	SentinelUser        = "<|user|>"
	SentinelAssistant   = "<|assistant|>"
	SentinelObservation = "<|observation|>"
)

// Sentinels lists every sentinel the prompt protocol uses.
var Sentinels = []string{SentinelAssistant, SentinelObservation, SentinelSystem, SentinelUser}

// Role tags one conversation entry. Several roles share a sentinel; they are told apart in a
// prompt by the text that follows the sentinel.
type Role int

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
	RoleTool
	RoleInterpreter
	RoleObservation
)

// Sentinel returns the prompt token for r.
func (r Role) Sentinel() string {
	switch r {
	case RoleSystem:
		return SentinelSystem
	case RoleUser:
		return SentinelUser
	case RoleAssistant, RoleTool, RoleInterpreter:
		return SentinelAssistant
	case RoleObservation:
		return SentinelObservation
	}
	return ""
}

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleTool:
		return "tool"
	case RoleInterpreter:
		return "interpreter"
	case RoleObservation:
		return "observation"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r >= RoleSystem && r <= RoleObservation
}

// IsSentinel reports whether s is exactly one of the protocol sentinels.
func IsSentinel(s string) bool {
	switch s {
	case SentinelSystem, SentinelUser, SentinelAssistant, SentinelObservation:
		return true
	}
	return false
}
