package conversation

import "strings"

var postprocessReplacer = strings.NewReplacer(
	`\(`, "$",
	`\)`, "$",
	`\[`, "$$",
	`\]`, "$$",
	SentinelAssistant, "",
	SentinelObservation, "",
	SentinelSystem, "",
	SentinelUser, "",
)

// Postprocess prepares model text for display and storage: LaTeX delimiters become dollar math
// spans, sentinels are removed and surrounding space is trimmed. Removing a sentinel can join
// text into a new one, so replacement repeats until nothing changes; applying Postprocess to
// its own output is a no-op.
func Postprocess(text string) string {
	for {
		next := strings.TrimSpace(postprocessReplacer.Replace(text))
		if next == text {
			return next
		}
		text = next
	}
}
