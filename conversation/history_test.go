package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEstimateCounter(t *testing.T) {
	var c EstimateCounter
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("abc"))
	assert.Equal(t, 1, c.Count("abcd"))
	assert.Equal(t, 2, c.Count("abcde"))
	assert.Equal(t, 1, c.Count("नमस्"), "counts runes, not bytes")
}

func TestEncodingFor(t *testing.T) {
	assert.Equal(t, "o200k_base", encodingFor("gpt-4o-mini"))
	assert.Equal(t, "cl100k_base", encodingFor("gpt-4-turbo"))
	assert.Equal(t, "cl100k_base", encodingFor("llama-3"))
}

func TestHistory_AddAndCopy(t *testing.T) {
	h := NewHistory(nil)
	h.Add(RoleAssistant, "hello")
	h.Add(RoleUser, "hi")

	msgs := h.Messages()
	require.Len(t, msgs, 2)
	msgs[0].Content = "changed"
	assert.Equal(t, "hello", h.Messages()[0].Content)
	assert.Equal(t, 2, h.Len())
}

func TestHistory_DropLast(t *testing.T) {
	h := NewHistory(nil)
	assert.False(t, h.DropLast(RoleUser))

	h.Add(RoleAssistant, "hello")
	h.Add(RoleUser, "hi")
	assert.False(t, h.DropLast(RoleAssistant))
	assert.True(t, h.DropLast(RoleUser))
	assert.Equal(t, []Message{{Role: RoleAssistant, Content: "hello"}}, h.Messages())
}

func TestHistory_Window(t *testing.T) {
	h := NewHistory(EstimateCounter{})
	h.Add(RoleUser, "aaaaaaaa")      // 2 + 4
	h.Add(RoleAssistant, "bbbbbbbb") // 2 + 4
	h.Add(RoleUser, "cccc")          // 1 + 4

	assert.Len(t, h.Window(0), 3)
	assert.Len(t, h.Window(100), 3)

	w := h.Window(11)
	require.Len(t, w, 2)
	assert.Equal(t, "bbbbbbbb", w[0].Content)

	w = h.Window(1)
	require.Len(t, w, 1, "always keeps the latest message")
	assert.Equal(t, "cccc", w[0].Content)
}

func TestHistory_ConcurrentAdd(t *testing.T) {
	h := NewHistory(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Add(RoleUser, fmt.Sprint(i))
			_ = h.Window(10)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, h.Len())
}

// 窗口是历史的后缀，且除单条外不超过预算
func TestHistory_WindowProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := NewHistory(EstimateCounter{})
		texts := rapid.SliceOfN(rapid.StringN(0, 40, -1), 1, 20).Draw(t, "texts")
		for _, s := range texts {
			h.Add(RoleUser, s)
		}
		budget := rapid.IntRange(1, 200).Draw(t, "budget")

		w := h.Window(budget)
		all := h.Messages()
		if len(w) == 0 {
			t.Fatalf("empty window")
		}
		if len(w) > 1 && h.Tokens(w) > budget {
			t.Fatalf("window uses %d tokens, budget %d", h.Tokens(w), budget)
		}
		offset := len(all) - len(w)
		for i := range w {
			if w[i] != all[offset+i] {
				t.Fatalf("window is not a suffix at %d", i)
			}
		}
		if offset > 0 && h.Tokens(all[offset-1:]) <= budget {
			t.Fatalf("window dropped a message that fits")
		}
	})
}
