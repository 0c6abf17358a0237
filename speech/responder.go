package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/callflow/internal/cache"
	"github.com/BaSui01/callflow/types"
)

// PromptBackend 提示音合成所需的后端能力
type PromptBackend interface {
	Translator
	Synthesizer
}

// SharedCache 跨实例共享的音频缓存，cache.Manager 实现了它
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ResponderOption 配置 Responder
type ResponderOption func(*Responder)

// WithSharedCache 启用 Redis 二级缓存
func WithSharedCache(c SharedCache, ttl time.Duration) ResponderOption {
	return func(r *Responder) {
		r.shared = c
		r.ttl = ttl
	}
}

// Responder 把固定提示文本合成为来电方语言的语音
type Responder struct {
	backend PromptBackend
	local   *cache.LRU[string, []byte]
	shared  SharedCache
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

// NewResponder 创建提示音合成器，localSize 为进程内缓存容量
func NewResponder(backend PromptBackend, localSize int, logger *zap.Logger, opts ...ResponderOption) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Responder{
		backend: backend,
		local:   cache.NewLRU[string, []byte](localSize),
		logger:  logger.With(zap.String("component", "prompt_responder")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Synthesize 返回 text 在 language 下的 PCM 音频。
// 非英文先翻译，翻译失败回退英文；回退结果不写入缓存。
func (r *Responder) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if language == "" {
		language = LanguageEnglish
	}
	key := promptKey(text, language)
	if pcm, ok := r.local.Get(key); ok {
		return pcm, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.load(ctx, key, text, language)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (r *Responder) load(ctx context.Context, key, text, language string) ([]byte, error) {
	if pcm, ok := r.local.Get(key); ok {
		return pcm, nil
	}
	if r.shared != nil {
		pcm, err := r.shared.Get(ctx, key)
		switch {
		case err == nil && len(pcm) > 0:
			r.local.Add(key, pcm)
			return pcm, nil
		case err != nil && !cache.IsCacheMiss(err):
			r.logger.Warn("shared prompt cache unavailable", zap.Error(err))
		}
	}

	spoken, lang := localize(ctx, r.backend, r.logger, text, language)
	pcm, err := r.backend.TextToSpeech(ctx, spoken, lang)
	if err != nil {
		return nil, types.NewError(types.ErrPipeline, "prompt synthesis failed").WithCause(err)
	}
	if len(pcm) == 0 {
		return nil, types.NewError(types.ErrPipeline, "empty prompt audio")
	}
	if lang != language {
		return pcm, nil
	}

	r.local.Add(key, pcm)
	if r.shared != nil {
		if err := r.shared.Set(ctx, key, pcm, r.ttl); err != nil {
			r.logger.Warn("failed to store prompt audio", zap.Error(err))
		}
	}
	r.logger.Debug("prompt audio cached",
		zap.String("language", language),
		zap.Int("bytes", len(pcm)),
	)
	return pcm, nil
}

// promptKey 缓存键为 prompt:{语言}:{文本哈希}
func promptKey(text, language string) string {
	sum := sha256.Sum256([]byte(language + "\x00" + text))
	return "prompt:" + language + ":" + hex.EncodeToString(sum[:16])
}
