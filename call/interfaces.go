package call

import (
	"context"
	"time"

	"github.com/BaSui01/callflow/audio"
	"github.com/BaSui01/callflow/transport"
	"github.com/BaSui01/callflow/vad"
)

// Transport 是单通电话的双向媒体流
type Transport interface {
	ReadEvent(ctx context.Context) (transport.Event, error)
	SendMedia(ctx context.Context, streamSID, payload string) error
	SendMark(ctx context.Context, streamSID, name string) error
	Close(reason string) error
}

// Pipeline 将来电方语音转换为回复语音。
// 返回错误或空音频表示本轮失败，来电方需要重说。
type Pipeline interface {
	Respond(ctx context.Context, pcm []byte) ([]byte, error)
}

// EndChecker 报告对话是否已完成
type EndChecker interface {
	IsConversationEnded() bool
}

// PromptSynthesizer 将固定提示文本合成为 PCM 音频
type PromptSynthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// Conditioner 对入站帧降噪，失败时返回原帧
type Conditioner interface {
	Apply(pcm audio.PCM) audio.PCM
}

// Detector 对单帧做语音活动判定
type Detector interface {
	Detect(frame audio.PCM) (vad.State, error)
}

// Plan 描述来电接通后的流程
type Plan struct {
	Stage       string
	Greeting    string
	Language    string
	Converse    bool
	Pipeline    Pipeline
	Handler     EndChecker
	HangupDelay time.Duration
	// OnComplete 在对话正常完成后调用，失败只记录日志
	OnComplete func(ctx context.Context) error
}

// Planner 根据来电号码生成通话流程
type Planner interface {
	Plan(ctx context.Context, callerKey string) (Plan, error)
}

// Observer 接收通话指标事件
type Observer interface {
	CallStarted()
	CallEnded(reason string, duration time.Duration)
	TurnCompleted(result string, latency time.Duration, speechBytes int)
	IdleTriggered()
	FrameDropped(reason string)
	AckTimedOut(tag string)
}

// 轮次结果
const (
	TurnReplied = "replied"
	TurnShort   = "short"
	TurnFailed  = "failed"
	// 来电方挂断导致回复中途取消
	TurnCancelled = "cancelled"
)

type nopObserver struct{}

func (nopObserver) CallStarted()                             {}
func (nopObserver) CallEnded(string, time.Duration)          {}
func (nopObserver) TurnCompleted(string, time.Duration, int) {}
func (nopObserver) IdleTriggered()                           {}
func (nopObserver) FrameDropped(string)                      {}
func (nopObserver) AckTimedOut(string)                       {}

// Summary 是通话结束后的记录
type Summary struct {
	SessionID string
	StreamSID string
	CallerKey string
	Stage     string
	StartedAt time.Time
	EndedAt   time.Time
	EndReason string
	Turns     int
	Error     string
}

// Recorder 持久化通话记录
type Recorder interface {
	Record(ctx context.Context, s Summary)
}
