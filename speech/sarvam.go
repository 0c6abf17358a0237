package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/callflow/audio"
	"github.com/BaSui01/callflow/config"
	"github.com/BaSui01/callflow/internal/upstream"
	"github.com/BaSui01/callflow/types"
)

// 语言代码
const (
	LanguageEnglish = "en-IN"
	LanguageHindi   = "hi-IN"
)

const (
	providerSarvam = "sarvam"
	apiKeyHeader   = "API-Subscription-Key"
)

// SarvamConfig Sarvam 客户端配置
type SarvamConfig struct {
	BaseURL             string
	APIKey              string
	Timeout             time.Duration
	Attempts            int
	SampleRate          int
	Speaker             string
	TTSModel            string
	TranslateModel      string
	ChunkLength         int
	MaxChunks           int
	BreakerThreshold    int
	BreakerResetTimeout time.Duration
}

// SarvamConfigFrom 由全局配置生成客户端配置
func SarvamConfigFrom(sc config.SpeechConfig, sampleRate int) SarvamConfig {
	return SarvamConfig{
		BaseURL:             sc.BaseURL,
		APIKey:              sc.APIKey,
		Timeout:             sc.Timeout,
		Attempts:            sc.MaxRetries,
		SampleRate:          sampleRate,
		Speaker:             sc.Speaker,
		TTSModel:            sc.TTSModel,
		TranslateModel:      sc.TranslateModel,
		ChunkLength:         sc.ChunkLength,
		MaxChunks:           sc.MaxChunks,
		BreakerThreshold:    sc.BreakerThreshold,
		BreakerResetTimeout: sc.BreakerResetTimeout,
	}
}

// Transcript 是语音翻译识别的结果，Text 为英文
type Transcript struct {
	Text         string
	LanguageCode string
}

// SarvamClient 访问 Sarvam AI 语音接口
type SarvamClient struct {
	cfg    SarvamConfig
	http   *upstream.Client
	logger *zap.Logger
}

// NewSarvamClient 创建 Sarvam 客户端
func NewSarvamClient(cfg SarvamConfig, logger *zap.Logger, opts ...upstream.Option) *SarvamClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.SampleRate
	}
	if cfg.Speaker == "" {
		cfg.Speaker = "meera"
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = "bulbul:v1"
	}
	if cfg.TranslateModel == "" {
		cfg.TranslateModel = "mayura:v1"
	}
	if cfg.ChunkLength <= 0 {
		cfg.ChunkLength = 450
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 3
	}
	client := upstream.New(upstream.Config{
		Provider:            providerSarvam,
		BaseURL:             cfg.BaseURL,
		Headers:             map[string]string{apiKeyHeader: cfg.APIKey},
		Timeout:             cfg.Timeout,
		Attempts:            cfg.Attempts,
		BreakerThreshold:    cfg.BreakerThreshold,
		BreakerResetTimeout: cfg.BreakerResetTimeout,
	}, logger, opts...)

	return &SarvamClient{
		cfg:    cfg,
		http:   client,
		logger: logger.With(zap.String("component", "sarvam")),
	}
}

type sttResponse struct {
	Transcript   string  `json:"transcript"`
	LanguageCode *string `json:"language_code"`
}

// SpeechToTextTranslate 识别任意地区语言的语音并翻译成英文。
// pcm 为 16 位单声道原始音频，上传前封装为 WAV。
func (c *SarvamClient) SpeechToTextTranslate(ctx context.Context, pcm []byte) (Transcript, error) {
	wav := audio.EncodeWAV(pcm, c.cfg.SampleRate, 1)
	var resp sttResponse
	err := c.http.PostMultipart(ctx, "speech_to_text_translate", "speech-to-text-translate", nil,
		upstream.FilePart{Field: "file", FileName: "audio.wav", ContentType: "audio/wav", Data: wav},
		&resp)
	if err != nil {
		return Transcript{}, fmt.Errorf("speech to text: %w", err)
	}
	t := Transcript{Text: strings.TrimSpace(resp.Transcript)}
	if resp.LanguageCode != nil {
		t.LanguageCode = *resp.LanguageCode
	}
	return t, nil
}

type translateRequest struct {
	Input               string `json:"input"`
	SourceLanguageCode  string `json:"source_language_code"`
	TargetLanguageCode  string `json:"target_language_code"`
	SpeakerGender       string `json:"speaker_gender"`
	Mode                string `json:"mode"`
	Model               string `json:"model"`
	EnablePreprocessing bool   `json:"enable_preprocessing"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Translate 把文本从 src 语言翻译为 dst 语言
func (c *SarvamClient) Translate(ctx context.Context, text, src, dst string) (string, error) {
	req := translateRequest{
		Input:              text,
		SourceLanguageCode: src,
		TargetLanguageCode: dst,
		SpeakerGender:      "Female",
		Mode:               "code-mixed",
		Model:              c.cfg.TranslateModel,
	}
	var resp translateResponse
	if err := c.http.PostJSON(ctx, "translate", "translate", req, &resp); err != nil {
		return "", fmt.Errorf("translate %s->%s: %w", src, dst, err)
	}
	if resp.TranslatedText == "" {
		return "", types.NewError(types.ErrUpstreamError, "empty translation").WithProvider(providerSarvam)
	}
	return resp.TranslatedText, nil
}

type ttsRequest struct {
	Inputs              []string `json:"inputs"`
	TargetLanguageCode  string   `json:"target_language_code"`
	Speaker             string   `json:"speaker"`
	Pitch               float64  `json:"pitch"`
	Pace                float64  `json:"pace"`
	Loudness            float64  `json:"loudness"`
	SpeechSampleRate    int      `json:"speech_sample_rate"`
	EnablePreprocessing bool     `json:"enable_preprocessing"`
	Model               string   `json:"model"`
}

type ttsResponse struct {
	Audios []string `json:"audios"`
}

// TextToSpeech 把文本合成为目标语言语音，返回去掉 WAV 头的 PCM。
// 超长文本按词切块，最多合成 MaxChunks 块。
func (c *SarvamClient) TextToSpeech(ctx context.Context, text, language string) (audio.PCM, error) {
	chunks := ChunkText(text, c.cfg.ChunkLength)
	if len(chunks) > c.cfg.MaxChunks {
		c.logger.Debug("tts input truncated",
			zap.Int("chunks", len(chunks)),
			zap.Int("max_chunks", c.cfg.MaxChunks),
		)
		chunks = chunks[:c.cfg.MaxChunks]
	}
	req := ttsRequest{
		Inputs:              chunks,
		TargetLanguageCode:  language,
		Speaker:             c.cfg.Speaker,
		Pitch:               0,
		Pace:                1.1,
		Loudness:            1.5,
		SpeechSampleRate:    c.cfg.SampleRate,
		EnablePreprocessing: true,
		Model:               c.cfg.TTSModel,
	}
	var resp ttsResponse
	if err := c.http.PostJSON(ctx, "text_to_speech", "text-to-speech", req, &resp); err != nil {
		return nil, fmt.Errorf("text to speech: %w", err)
	}
	if len(resp.Audios) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "no audio returned").WithProvider(providerSarvam)
	}

	frames := make([]audio.PCM, 0, len(resp.Audios))
	for i, encoded := range resp.Audios {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, types.NewError(types.ErrDecode, fmt.Sprintf("audio %d: invalid base64", i)).WithCause(err)
		}
		pcm, format, err := audio.DecodeWAV(raw)
		if err != nil {
			return nil, types.NewError(types.ErrDecode, fmt.Sprintf("audio %d: invalid wav", i)).WithCause(err)
		}
		if format.SampleRate != c.cfg.SampleRate {
			c.logger.Warn("tts sample rate mismatch",
				zap.Int("got", format.SampleRate),
				zap.Int("want", c.cfg.SampleRate),
			)
		}
		frames = append(frames, pcm)
	}
	return audio.Join(frames), nil
}
