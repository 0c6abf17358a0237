package conversation

import "sync"

// History 并发安全的对话历史
type History struct {
	mu       sync.RWMutex
	messages []Message
	counter  TokenCounter
}

// NewHistory 创建对话历史，counter 为空时使用估算
func NewHistory(counter TokenCounter) *History {
	if counter == nil {
		counter = EstimateCounter{}
	}
	return &History{counter: counter}
}

// Add 追加一条消息
func (h *History) Add(role Role, content string) {
	h.mu.Lock()
	h.messages = append(h.messages, Message{Role: role, Content: content})
	h.mu.Unlock()
}

// DropLast 最后一条消息属于 role 时将其移除
func (h *History) DropLast(role Role) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.messages)
	if n == 0 || h.messages[n-1].Role != role {
		return false
	}
	h.messages = h.messages[:n-1]
	return true
}

// Len 返回消息数
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Messages 返回历史副本
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Tokens 计算一组消息的 Token 数
func (h *History) Tokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead + h.counter.Count(m.Content)
	}
	return total
}

// Window 返回不超过 budget 的最近消息，至少保留最后一条。
// budget <= 0 时返回全部。
func (h *History) Window(budget int) []Message {
	msgs := h.Messages()
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}
	used := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := messageOverhead + h.counter.Count(msgs[i].Content)
		if used+cost > budget && start < len(msgs) {
			break
		}
		used += cost
		start = i
	}
	return msgs[start:]
}
