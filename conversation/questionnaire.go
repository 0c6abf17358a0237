package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/callflow/types"
)

// aiResponseKey 结构化输出中回复文本的键
const aiResponseKey = "ai_response"

// Question 问卷中的一道题
type Question struct {
	ID   string `yaml:"index" json:"index"`
	Text string `yaml:"question" json:"question"`
}

// LoadQuestionnaire 从 YAML 或 JSON 文件读取问卷
func LoadQuestionnaire(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questionnaire: %w", err)
	}
	var qs []Question
	if err := yaml.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("parse questionnaire %s: %w", path, err)
	}
	seen := make(map[string]bool, len(qs))
	for i, q := range qs {
		if q.ID == "" || q.Text == "" {
			return nil, fmt.Errorf("questionnaire item %d: index and question are required", i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("questionnaire item %d: duplicate index %q", i, q.ID)
		}
		seen[q.ID] = true
	}
	return qs, nil
}

// QuestionnaireHandler 逐题收集问卷答案
type QuestionnaireHandler struct {
	base
	questions []Question
	summary   string

	mu      sync.RWMutex
	answers map[string]string
}

// NewQuestionnaireHandler 创建问卷对话，summary 为来电方账户摘要
func NewQuestionnaireHandler(questions []Question, summary string, opts Options) *QuestionnaireHandler {
	return &QuestionnaireHandler{
		base:      newBase(opts),
		questions: questions,
		summary:   summary,
		answers:   map[string]string{},
	}
}

// GenerateResponse 实现 Handler
func (h *QuestionnaireHandler) GenerateResponse(ctx context.Context) (string, error) {
	system := fmt.Sprintf(questionnairePrompt, h.questionTable(), h.summary)
	raw, err := h.model.Generate(ctx, ChatRequest{
		Messages:    h.prompt(system),
		Temperature: h.temperature,
		JSON:        true,
	})
	if err != nil {
		return h.abandon(err)
	}

	reply, answers, err := parseStructured(raw)
	if err != nil {
		return h.abandon(err)
	}
	h.mu.Lock()
	for _, q := range h.questions {
		if v, ok := answers[q.ID]; ok {
			h.answers[q.ID] = v
		}
	}
	h.mu.Unlock()

	if reply == "" {
		reply = fallbackReply
	}
	if h.IsConversationEnded() {
		reply = closingMessage
	}
	h.AddAIMessage(reply)
	return reply, nil
}

// IsConversationEnded 所有题目都有非空答案时结束
func (h *QuestionnaireHandler) IsConversationEnded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.questions) == 0 {
		return false
	}
	for _, q := range h.questions {
		if strings.TrimSpace(h.answers[q.ID]) == "" {
			return false
		}
	}
	return true
}

// Answers 返回已收集的答案副本
func (h *QuestionnaireHandler) Answers() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.answers))
	for k, v := range h.answers {
		out[k] = v
	}
	return out
}

// Profile 按问题顺序渲染已收集的回答
func (h *QuestionnaireHandler) Profile() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var b strings.Builder
	for _, q := range h.questions {
		if a := h.answers[q.ID]; a != "" {
			fmt.Fprintf(&b, "- **%s** %s\n", q.Text, a)
		}
	}
	return b.String()
}

// questionTable 渲染为 markdown 表
func (h *QuestionnaireHandler) questionTable() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var b strings.Builder
	b.WriteString("| index | question | answer |\n|---|---|---|\n")
	for _, q := range h.questions {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", q.ID, q.Text, h.answers[q.ID])
	}
	return b.String()
}

// parseStructured 解析模型的 JSON 输出，兼容 ```json 代码块
func parseStructured(raw string) (string, map[string]string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	var fields map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &fields); err != nil {
		return "", nil, types.NewError(types.ErrUpstreamError, "model returned invalid json").WithCause(err)
	}
	reply, _ := fields[aiResponseKey].(string)
	delete(fields, aiResponseKey)

	answers := make(map[string]string, len(fields))
	for k, field := range fields {
		switch v := field.(type) {
		case string:
			answers[k] = strings.TrimSpace(v)
		case nil:
			answers[k] = ""
		default:
			answers[k] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return cleanReply(reply), answers, nil
}
