package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// AdviceHandler 围绕顾问建议文档答疑
type AdviceHandler struct {
	base
	document string
	ended    atomic.Bool
}

// NewAdviceHandler 创建建议答疑对话
func NewAdviceHandler(document string, opts Options) *AdviceHandler {
	return &AdviceHandler{base: newBase(opts), document: document}
}

// GenerateResponse 实现 Handler；回复含结束标记时标记对话结束
func (h *AdviceHandler) GenerateResponse(ctx context.Context) (string, error) {
	system := fmt.Sprintf(advicePrompt, h.document, EndMarker)
	raw, err := h.model.Generate(ctx, ChatRequest{
		Messages:    h.prompt(system),
		Temperature: h.temperature,
	})
	if err != nil {
		return h.abandon(err)
	}

	reply := cleanReply(raw)
	if strings.Contains(reply, EndMarker) {
		reply = strings.TrimSpace(strings.ReplaceAll(reply, EndMarker, ""))
		h.ended.Store(true)
	}
	switch {
	case reply == "" && h.ended.Load():
		reply = goodbyeMessage
	case reply == "":
		reply = fallbackReply
	}
	h.AddAIMessage(reply)
	return reply, nil
}

// IsConversationEnded 实现 Handler
func (h *AdviceHandler) IsConversationEnded() bool { return h.ended.Load() }
