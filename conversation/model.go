package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/callflow/config"
	"github.com/BaSui01/callflow/internal/upstream"
	"github.com/BaSui01/callflow/types"
)

// ChatRequest 模型请求
type ChatRequest struct {
	Messages    []Message
	Temperature float64
	// JSON 要求模型返回 JSON 对象
	JSON bool
}

// ChatModel 对话模型
type ChatModel interface {
	Generate(ctx context.Context, req ChatRequest) (string, error)
}

// ModelFunc 把函数适配为 ChatModel
type ModelFunc func(ctx context.Context, req ChatRequest) (string, error)

// Generate 实现 ChatModel
func (f ModelFunc) Generate(ctx context.Context, req ChatRequest) (string, error) {
	return f(ctx, req)
}

// OpenAIConfig OpenAI 兼容模型配置
type OpenAIConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
	Attempts int
}

// OpenAIConfigFrom 由全局配置生成模型配置
func OpenAIConfigFrom(lc config.LLMConfig) OpenAIConfig {
	return OpenAIConfig{
		BaseURL:  lc.BaseURL,
		APIKey:   lc.APIKey,
		Model:    lc.Model,
		Timeout:  lc.Timeout,
		Attempts: lc.MaxRetries,
	}
}

// OpenAIModel 调用 /chat/completions
type OpenAIModel struct {
	model  string
	http   *upstream.Client
	logger *zap.Logger
}

// NewOpenAIModel 创建 OpenAI 兼容模型
func NewOpenAIModel(cfg OpenAIConfig, logger *zap.Logger, opts ...upstream.Option) *OpenAIModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}
	return &OpenAIModel{
		model: cfg.Model,
		http: upstream.New(upstream.Config{
			Provider: "openai",
			BaseURL:  cfg.BaseURL,
			Headers:  headers,
			Timeout:  cfg.Timeout,
			Attempts: cfg.Attempts,
		}, logger, opts...),
		logger: logger.With(zap.String("component", "chat_model")),
	}
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate 实现 ChatModel
func (m *OpenAIModel) Generate(ctx context.Context, req ChatRequest) (string, error) {
	body := openAIRequest{
		Model:       m.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	var resp openAIResponse
	if err := m.http.PostJSON(ctx, "chat_completion", "chat/completions", body, &resp); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrUpstreamError, "no choices returned").WithProvider("openai")
	}
	m.logger.Debug("chat completion",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", resp.Choices[0].FinishReason),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
