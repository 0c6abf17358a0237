package conversation

import (
	"context"
	"strings"
)

// fallbackReply 模型未给出回复时的兜底
const fallbackReply = "Sorry, I totally missed that. Can you please repeat?"

// Handler 是一通电话的对话状态
type Handler interface {
	AddHumanMessage(text string)
	AddAIMessage(text string)
	// GenerateResponse 根据历史生成下一句回复并写入历史。
	// 失败时撤回末尾未得到回复的来电方消息，历史中不会出现连续两条来电方消息。
	GenerateResponse(ctx context.Context) (string, error)
	IsConversationEnded() bool
}

// Options 处理器公共参数
type Options struct {
	Model       ChatModel
	Counter     TokenCounter
	MaxTokens   int
	Temperature float64
}

// base 提供历史记录与提示拼装
type base struct {
	history     *History
	model       ChatModel
	maxTokens   int
	temperature float64
}

func newBase(opts Options) base {
	return base{
		history:     NewHistory(opts.Counter),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

// AddHumanMessage 追加来电方消息
func (b *base) AddHumanMessage(text string) { b.history.Add(RoleUser, text) }

// AddAIMessage 追加助手消息
func (b *base) AddAIMessage(text string) { b.history.Add(RoleAssistant, text) }

// abandon 生成失败时撤回本轮来电方消息
func (b *base) abandon(err error) (string, error) {
	b.history.DropLast(RoleUser)
	return "", err
}

// History 返回对话历史
func (b *base) History() *History { return b.history }

// prompt 拼装系统提示与裁剪后的历史
func (b *base) prompt(system string) []Message {
	budget := 0
	if b.maxTokens > 0 {
		budget = b.maxTokens - b.history.Tokens([]Message{{Role: RoleSystem, Content: system}})
		if budget < 1 {
			budget = 1
		}
	}
	window := b.history.Window(budget)
	msgs := make([]Message, 0, len(window)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	return append(msgs, window...)
}

// cleanReply 去掉模型偶尔带上的 "AI:" 前缀
func cleanReply(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.EqualFold(s[:3], "ai:") {
		s = strings.TrimSpace(s[3:])
	}
	return s
}
