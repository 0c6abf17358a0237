package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/callflow/audio"
)

// 播放确认标签
const (
	TagReply  = "ai-message"
	TagPrompt = "default-audio"
)

// playback 记录一次等待确认的音频播放
type playback struct {
	tag      string
	deadline time.Time
	final    bool
}

// Session 保存单通电话的轮次状态与语音缓冲。
// 所有字段由 mu 保护；入站与出站循环只通过方法交互。
type Session struct {
	id        string
	streamSID string
	callerKey string
	startedAt time.Time
	now       func() time.Time

	mu        sync.Mutex
	state     State
	buf       []byte
	play      *playback
	endReason Event
	endedAt   time.Time
	turns     int

	turnReady chan struct{}
	done      chan struct{}
}

// SessionOption 配置会话
type SessionOption func(*Session)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionID 指定会话 ID
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// NewSession 创建处于 Listening 状态的会话
func NewSession(streamSID, callerKey string, opts ...SessionOption) *Session {
	s := &Session{
		id:        uuid.NewString(),
		streamSID: streamSID,
		callerKey: callerKey,
		now:       time.Now,
		state:     StateListening,
		turnReady: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.now()
	return s
}

// ID 返回会话唯一标识
func (s *Session) ID() string { return s.id }

// StreamSID 返回媒体流标识
func (s *Session) StreamSID() string { return s.streamSID }

// CallerKey 返回归一化后的来电号码
func (s *Session) CallerKey() string { return s.callerKey }

// StartedAt 返回会话创建时间
func (s *Session) StartedAt() time.Time { return s.startedAt }

// State 返回当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition 执行一次状态转换，返回转换后的状态
func (s *Session) Transition(ev Event) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(ev)
}

func (s *Session) transitionLocked(ev Event) (State, error) {
	from := s.state
	final := s.play != nil && s.play.final
	to, ok := next(from, ev, final)
	if !ok {
		return from, ErrIllegalTransition{From: from, Event: ev}
	}

	s.state = to
	if from == StatePlayingReply && to != StatePlayingReply {
		s.play = nil
	}

	switch to {
	case StateThinking:
		select {
		case s.turnReady <- struct{}{}:
		default:
		}
	case StateEnded:
		s.endReason = ev
		s.endedAt = s.now()
		s.play = nil
		close(s.done)
	}
	return to, nil
}

// End 结束会话；已结束时返回 false
func (s *Session) End(reason Event) bool {
	_, err := s.Transition(reason)
	return err == nil
}

// Thinking 报告是否有待处理或正在播放的回复
func (s *Session) Thinking() bool {
	st := s.State()
	return st == StateThinking || st == StatePlayingReply
}

// Listening 报告来电方是否正在收听本端音频
func (s *Session) Listening() bool {
	return s.State() == StatePlayingReply
}

// Ended 报告会话是否已结束
func (s *Session) Ended() bool {
	return s.State() == StateEnded
}

// EndReason 返回结束原因，未结束时为空
func (s *Session) EndReason() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endReason
}

// TurnReady 在检测到停顿时收到信号
func (s *Session) TurnReady() <-chan struct{} { return s.turnReady }

// Done 在会话结束时关闭
func (s *Session) Done() <-chan struct{} { return s.done }

// ErrSessionEnded 会话结束时绑定的 context 以此为取消原因
var ErrSessionEnded = errors.New("call: session ended")

// Bind 返回随会话结束而取消的子 context，调用方负责调用 cancel
func (s *Session) Bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	go func() {
		select {
		case <-s.done:
			cancel(ErrSessionEnded)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

// =============================================================================
// 🎙️ 语音缓冲
// =============================================================================

// AppendFrame 仅在 Listening 状态追加 PCM 帧
func (s *Session) AppendFrame(frame audio.PCM) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateListening {
		return false
	}
	s.buf = append(s.buf, frame...)
	return true
}

// TakeBuffer 原子地取出并清空缓冲
func (s *Session) TakeBuffer() audio.PCM {
	s.mu.Lock()
	defer s.mu.Unlock()
	pcm := s.buf
	s.buf = nil
	return pcm
}

// BufferedBytes 返回已缓冲的字节数
func (s *Session) BufferedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// =============================================================================
// 🔊 播放确认
// =============================================================================

// BeginPlayback 登记待确认的播放并转入 PlayingReply。
// 确认截止时间为 now + audioDuration + grace。
func (s *Session) BeginPlayback(tag string, audioDuration, grace time.Duration, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, EventReplySent) {
		return ErrIllegalTransition{From: s.state, Event: EventReplySent}
	}
	s.play = &playback{
		tag:      tag,
		deadline: s.now().Add(audioDuration + grace),
		final:    final,
	}
	_, err := s.transitionLocked(EventReplySent)
	return err
}

// PendingTag 返回等待确认的标签
func (s *Session) PendingTag() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.play == nil {
		return "", false
	}
	return s.play.tag, true
}

// AckMark 处理远端返回的 mark；标签匹配时完成播放
func (s *Session) AckMark(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlayingReply || s.play == nil || s.play.tag != tag {
		return false
	}
	_, err := s.transitionLocked(EventReplyAcked)
	return err == nil
}

// PlaybackExpired 报告播放确认是否已超时
func (s *Session) PlaybackExpired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiredLocked(now)
}

func (s *Session) expiredLocked(now time.Time) bool {
	return s.state == StatePlayingReply && s.play != nil && now.After(s.play.deadline)
}

// ExpirePlayback 在超时时原子地执行 AckTimedOut，返回超时的标签
func (s *Session) ExpirePlayback(now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.expiredLocked(now) {
		return "", false
	}
	tag := s.play.tag
	if _, err := s.transitionLocked(EventAckTimedOut); err != nil {
		return "", false
	}
	return tag, true
}

func (s *Session) recordTurn() {
	s.mu.Lock()
	s.turns++
	s.mu.Unlock()
}

// =============================================================================
// 📋 快照
// =============================================================================

// SessionInfo 会话快照
type SessionInfo struct {
	ID            string    `json:"id"`
	StreamSID     string    `json:"stream_sid"`
	CallerKey     string    `json:"caller"`
	State         State     `json:"state"`
	StartedAt     time.Time `json:"started_at"`
	BufferedBytes int       `json:"buffered_bytes"`
	Turns         int       `json:"turns"`
	EndReason     Event     `json:"end_reason,omitempty"`
}

// Info 返回会话快照
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:            s.id,
		StreamSID:     s.streamSID,
		CallerKey:     s.callerKey,
		State:         s.state,
		StartedAt:     s.startedAt,
		BufferedBytes: len(s.buf),
		Turns:         s.turns,
		EndReason:     s.endReason,
	}
}
