// Package mocks 提供语音后端与对话模型的脚本化实现。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/callflow/audio"
	"github.com/BaSui01/callflow/conversation"
	"github.com/BaSui01/callflow/speech"
)

// SpeechBackend 是 speech.Backend 的脚本化实现
type SpeechBackend struct {
	mu sync.Mutex

	transcript speech.Transcript
	audio      audio.PCM
	sttErr     error
	ttsErr     error
	trErr      error

	recognized  int
	translated  []string
	synthesized []string
}

// NewSpeechBackend 创建默认返回 0.1 秒静音的后端
func NewSpeechBackend() *SpeechBackend {
	return &SpeechBackend{
		transcript: speech.Transcript{Text: "hello", LanguageCode: speech.LanguageHindi},
		audio:      make(audio.PCM, 1600),
	}
}

// WithTranscript 设置识别结果
func (b *SpeechBackend) WithTranscript(text, language string) *SpeechBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transcript = speech.Transcript{Text: text, LanguageCode: language}
	return b
}

// WithAudio 设置合成结果
func (b *SpeechBackend) WithAudio(pcm audio.PCM) *SpeechBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = pcm
	return b
}

// WithErrors 设置各阶段返回的错误，nil 表示成功
func (b *SpeechBackend) WithErrors(stt, translate, tts error) *SpeechBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sttErr, b.trErr, b.ttsErr = stt, translate, tts
	return b
}

// SpeechToTextTranslate 实现 speech.Recognizer
func (b *SpeechBackend) SpeechToTextTranslate(ctx context.Context, _ []byte) (speech.Transcript, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recognized++
	if err := ctx.Err(); err != nil {
		return speech.Transcript{}, err
	}
	return b.transcript, b.sttErr
}

// Translate 实现 speech.Translator，原样返回文本
func (b *SpeechBackend) Translate(_ context.Context, text, _, dst string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.translated = append(b.translated, dst)
	if b.trErr != nil {
		return "", b.trErr
	}
	return text, nil
}

// TextToSpeech 实现 speech.Synthesizer
func (b *SpeechBackend) TextToSpeech(_ context.Context, text, _ string) (audio.PCM, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.synthesized = append(b.synthesized, text)
	if b.ttsErr != nil {
		return nil, b.ttsErr
	}
	return append(audio.PCM(nil), b.audio...), nil
}

// Recognized 返回识别调用次数
func (b *SpeechBackend) Recognized() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recognized
}

// Synthesized 返回已合成的文本
func (b *SpeechBackend) Synthesized() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.synthesized...)
}

var _ speech.Backend = (*SpeechBackend)(nil)

// ChatModel 按顺序返回预设回复，用尽后重复最后一条
type ChatModel struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []conversation.ChatRequest
}

// NewChatModel 创建脚本化对话模型
func NewChatModel(replies ...string) *ChatModel {
	return &ChatModel{replies: replies}
}

// WithError 让后续调用返回 err
func (m *ChatModel) WithError(err error) *ChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Generate 实现 conversation.ChatModel
func (m *ChatModel) Generate(_ context.Context, req conversation.ChatRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	idx := min(len(m.requests), len(m.replies)) - 1
	return m.replies[idx], nil
}

// Requests 返回收到的请求
func (m *ChatModel) Requests() []conversation.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]conversation.ChatRequest(nil), m.requests...)
}

var _ conversation.ChatModel = (*ChatModel)(nil)
