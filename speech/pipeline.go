package speech

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/callflow/audio"
	"github.com/BaSui01/callflow/conversation"
	"github.com/BaSui01/callflow/types"
)

const instrumentationName = "github.com/BaSui01/callflow/speech"

// Recognizer 语音识别并翻译为英文
type Recognizer interface {
	SpeechToTextTranslate(ctx context.Context, pcm []byte) (Transcript, error)
}

// Translator 文本翻译
type Translator interface {
	Translate(ctx context.Context, text, src, dst string) (string, error)
}

// Synthesizer 文本转语音
type Synthesizer interface {
	TextToSpeech(ctx context.Context, text, language string) (audio.PCM, error)
}

// Backend 是语音后端的全部能力，SarvamClient 实现了它
type Backend interface {
	Recognizer
	Translator
	Synthesizer
}

// ConversationPipeline 把一轮来电方语音转换为回复语音
type ConversationPipeline struct {
	backend         Backend
	handler         conversation.Handler
	defaultLanguage string
	tracer          trace.Tracer
	logger          *zap.Logger
}

// NewConversationPipeline 创建语音管线
func NewConversationPipeline(backend Backend, handler conversation.Handler, defaultLanguage string, logger *zap.Logger) *ConversationPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultLanguage == "" {
		defaultLanguage = LanguageHindi
	}
	return &ConversationPipeline{
		backend:         backend,
		handler:         handler,
		defaultLanguage: defaultLanguage,
		tracer:          otel.Tracer(instrumentationName),
		logger:          logger.With(zap.String("component", "speech_pipeline")),
	}
}

// Handler 返回对话处理器
func (p *ConversationPipeline) Handler() conversation.Handler { return p.handler }

// Respond 识别 → 生成回复 → 翻译 → 合成
func (p *ConversationPipeline) Respond(ctx context.Context, pcm []byte) ([]byte, error) {
	ctx, span := p.tracer.Start(ctx, "speech.respond",
		trace.WithAttributes(attribute.Int("speech.input_bytes", len(pcm))))
	defer span.End()

	out, lang, err := p.respond(ctx, pcm)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("speech.language", lang),
		attribute.Int("speech.output_bytes", len(out)),
	)
	return out, nil
}

func (p *ConversationPipeline) respond(ctx context.Context, pcm []byte) ([]byte, string, error) {
	start := time.Now()

	transcript, err := p.backend.SpeechToTextTranslate(ctx, pcm)
	if err != nil {
		return nil, "", types.Wrap(types.ErrPipeline, "stt", err)
	}
	lang := transcript.LanguageCode
	if lang == "" {
		lang = p.defaultLanguage
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, lang, types.NewError(types.ErrPipeline, "empty transcript")
	}
	p.logger.Debug("caller transcript",
		zap.String("language", lang),
		zap.String("transcript", transcript.Text),
	)

	p.handler.AddHumanMessage(transcript.Text)
	reply, err := p.handler.GenerateResponse(ctx)
	if err != nil {
		return nil, lang, types.Wrap(types.ErrPipeline, "respond", err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, lang, types.NewError(types.ErrPipeline, "empty response")
	}

	text, lang := localize(ctx, p.backend, p.logger, reply, lang)

	out, err := p.backend.TextToSpeech(ctx, text, lang)
	if err != nil {
		return nil, lang, types.Wrap(types.ErrPipeline, "tts", err)
	}
	if len(out) == 0 {
		return nil, lang, types.NewError(types.ErrPipeline, "empty synthesized audio")
	}

	p.logger.Info("turn synthesized",
		zap.String("language", lang),
		zap.Int("input_bytes", len(pcm)),
		zap.Int("output_bytes", len(out)),
		zap.Duration("latency", time.Since(start)),
	)
	return out, lang, nil
}

// localize 把英文文本翻译为 lang，失败时回退英文
func localize(ctx context.Context, tr Translator, logger *zap.Logger, text, lang string) (string, string) {
	if lang == LanguageEnglish {
		return text, lang
	}
	translated, err := tr.Translate(ctx, text, LanguageEnglish, lang)
	if err != nil {
		logger.Warn("translation failed, falling back to english",
			zap.String("language", lang),
			zap.Error(err),
		)
		return text, LanguageEnglish
	}
	return translated, lang
}
