package conversation

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// messageOverhead 每条消息的格式开销
const messageOverhead = 4

// TokenCounter 计算文本 Token 数
type TokenCounter interface {
	Count(text string) int
}

// 模型名前缀到编码
var modelEncodings = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", "o200k_base"},
	{"o1", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5", "cl100k_base"},
}

func encodingFor(model string) string {
	for _, m := range modelEncodings {
		if strings.HasPrefix(model, m.prefix) {
			return m.encoding
		}
	}
	return "cl100k_base"
}

// TiktokenCounter 基于 tiktoken 的计数器，编码不可用时退化为估算
type TiktokenCounter struct {
	encoding string
	logger   *zap.Logger

	once     sync.Once
	enc      *tiktoken.Tiktoken
	fallback EstimateCounter
}

// NewTiktokenCounter 为模型创建计数器，编码在首次使用时加载
func NewTiktokenCounter(model string, logger *zap.Logger) *TiktokenCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TiktokenCounter{encoding: encodingFor(model), logger: logger}
}

// Count 实现 TokenCounter
func (c *TiktokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.logger.Warn("tiktoken encoding unavailable, estimating tokens",
				zap.String("encoding", c.encoding),
				zap.Error(err),
			)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return c.fallback.Count(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// EstimateCounter 按约 4 个字符 1 个 Token 估算
type EstimateCounter struct{}

// Count 实现 TokenCounter
func (EstimateCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
