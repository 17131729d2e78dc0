package conversation

import "sync"

// History is the ordered, append-only record of one conversation. It is safe for concurrent
// use, although a single session normally has one writer at a time.
type History struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewHistory returns a history seeded with entries.
func NewHistory(entries ...Entry) *History {
	return &History{entries: append([]Entry(nil), entries...)}
}

// Append adds entries at the end.
func (h *History) Append(entries ...Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entries...)
}

// Entries returns a copy of the entries in order.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Entry(nil), h.entries...)
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Last returns the newest entry.
func (h *History) Last() (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return Entry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Reset clears the conversation.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// Truncate keeps the first n entries.
func (h *History) Truncate(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n < len(h.entries) {
		clear(h.entries[n:])
		h.entries = h.entries[:n]
	}
}

// Retry drops the last USER entry and everything after it, returning that entry's content so
// it can be asked again. It reports false when there is no USER entry.
func (h *History) Retry() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].Role == RoleUser {
			prompt := h.entries[i].Content
			clear(h.entries[i:])
			h.entries = h.entries[:i]
			return prompt, true
		}
	}
	return "", false
}
