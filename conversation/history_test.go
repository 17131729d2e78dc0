package conversation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendEntries(t *testing.T) {
	h := NewHistory(Entry{Role: RoleUser, Content: "Hi"})
	h.Append(Entry{Role: RoleAssistant, Content: "Hello"})
	assert.Equal(t, 2, h.Len())

	entries := h.Entries()
	entries[0].Content = "mutated"
	assert.Equal(t, "Hi", h.Entries()[0].Content)

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, last.Role)
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory(Entry{Role: RoleUser, Content: "Hi"})
	h.Reset()
	assert.Zero(t, h.Len())
	_, ok := h.Last()
	assert.False(t, ok)
}

func TestHistory_Truncate(t *testing.T) {
	h := NewHistory(
		Entry{Role: RoleUser, Content: "a"},
		Entry{Role: RoleAssistant, Content: "b"},
		Entry{Role: RoleUser, Content: "c"},
	)
	h.Truncate(5)
	assert.Equal(t, 3, h.Len())
	h.Truncate(1)
	assert.Equal(t, []Entry{{Role: RoleUser, Content: "a"}}, h.Entries())
	h.Truncate(-1)
	assert.Zero(t, h.Len())
}

func TestHistory_Retry(t *testing.T) {
	h := NewHistory(
		Entry{Role: RoleUser, Content: "What's the weather in Paris?"},
		Entry{Role: RoleTool, Tool: "get_weather", Content: "call"},
		Entry{Role: RoleObservation, Content: "sunny"},
		Entry{Role: RoleAssistant, Content: "It is sunny."},
	)
	prompt, ok := h.Retry()
	require.True(t, ok)
	assert.Equal(t, "What's the weather in Paris?", prompt)
	assert.Zero(t, h.Len())

	_, ok = h.Retry()
	assert.False(t, ok)
}

func TestHistory_ConcurrentAppend(t *testing.T) {
	h := NewHistory()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Append(Entry{Role: RoleUser, Content: "x"})
			_ = h.Entries()
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, h.Len())
}
