package call

import "fmt"

// State 定义通话会话的轮次状态
type State string

const (
	StateListening    State = "listening"     // 收集来电方语音
	StateThinking     State = "thinking"      // 已检测到停顿，等待生成回复
	StatePlayingReply State = "playing_reply" // 回复已发送，等待播放确认
	StateEnded        State = "ended"         // 会话结束（终态）
)

// Event 驱动状态转换的事件
type Event string

const (
	EventPauseDetected     Event = "pause_detected"
	EventTurnDiscarded     Event = "turn_discarded"
	EventReplySent         Event = "reply_sent"
	EventReplyAcked        Event = "reply_acked"
	EventAckTimedOut       Event = "ack_timed_out"
	EventConversationEnded Event = "conversation_ended"
	EventTransportClosed   Event = "transport_closed"
)

// transitions 定义合法的状态转换。
// ReplyAcked 与 AckTimedOut 在最终回复时改为进入 Ended，由 next 处理。
var transitions = map[State]map[Event]State{
	StateListening: {
		EventPauseDetected:     StateThinking,
		EventReplySent:         StatePlayingReply,
		EventConversationEnded: StateEnded,
		EventTransportClosed:   StateEnded,
	},
	StateThinking: {
		EventTurnDiscarded:     StateListening,
		EventReplySent:         StatePlayingReply,
		EventConversationEnded: StateEnded,
		EventTransportClosed:   StateEnded,
	},
	StatePlayingReply: {
		EventReplyAcked:        StateListening,
		EventAckTimedOut:       StateListening,
		EventConversationEnded: StateEnded,
		EventTransportClosed:   StateEnded,
	},
	StateEnded: {},
}

// next 计算转换结果；final 表示当前播放的是最后一条回复
func next(from State, ev Event, final bool) (State, bool) {
	to, ok := transitions[from][ev]
	if !ok {
		return from, false
	}
	if final && (ev == EventReplyAcked || ev == EventAckTimedOut) {
		return StateEnded, true
	}
	return to, true
}

// CanTransition 检查事件在给定状态下是否合法
func CanTransition(from State, ev Event) bool {
	_, ok := transitions[from][ev]
	return ok
}

// ErrIllegalTransition 非法状态转换错误
type ErrIllegalTransition struct {
	From  State
	Event Event
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal session transition: %s on %s", e.Event, e.From)
}
