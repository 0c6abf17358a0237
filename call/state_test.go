package call

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEvents = []Event{
	EventPauseDetected,
	EventTurnDiscarded,
	EventReplySent,
	EventReplyAcked,
	EventAckTimedOut,
	EventConversationEnded,
	EventTransportClosed,
}

func TestNext_Table(t *testing.T) {
	tests := []struct {
		from  State
		ev    Event
		final bool
		want  State
		ok    bool
	}{
		{StateListening, EventPauseDetected, false, StateThinking, true},
		{StateListening, EventTurnDiscarded, false, StateListening, false},
		{StateListening, EventReplySent, false, StatePlayingReply, true},
		{StateThinking, EventTurnDiscarded, false, StateListening, true},
		{StateThinking, EventPauseDetected, false, StateThinking, false},
		{StateThinking, EventReplySent, false, StatePlayingReply, true},
		{StatePlayingReply, EventReplyAcked, false, StateListening, true},
		{StatePlayingReply, EventAckTimedOut, false, StateListening, true},
		{StatePlayingReply, EventReplyAcked, true, StateEnded, true},
		{StatePlayingReply, EventAckTimedOut, true, StateEnded, true},
		{StatePlayingReply, EventPauseDetected, false, StatePlayingReply, false},
		{StateListening, EventTransportClosed, false, StateEnded, true},
		{StateThinking, EventConversationEnded, false, StateEnded, true},
		{StateEnded, EventTransportClosed, false, StateEnded, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			got, ok := next(tt.from, tt.ev, tt.final)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSession_EndedRejectsEverything(t *testing.T) {
	s := NewSession("MZ1", "9876543210")
	require.True(t, s.End(EventTransportClosed))

	for _, ev := range allEvents {
		st, err := s.Transition(ev)
		require.Error(t, err)
		assert.IsType(t, ErrIllegalTransition{}, err)
		assert.Equal(t, StateEnded, st)
	}
	assert.Equal(t, EventTransportClosed, s.EndReason())
	assert.False(t, s.End(EventConversationEnded))
}

func TestErrIllegalTransition_Message(t *testing.T) {
	err := ErrIllegalTransition{From: StateListening, Event: EventReplyAcked}
	assert.Equal(t, "illegal session transition: reply_acked on listening", err.Error())
}

// 任意事件序列下：状态始终合法，Ended 为终态，Done 关闭当且仅当 Ended
func TestSession_TransitionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("ended is absorbing and done tracks it", prop.ForAll(
		func(seq []int) bool {
			s := NewSession("MZ", "c")
			ended := false
			for _, i := range seq {
				ev := allEvents[i]
				before := s.State()
				after, err := s.Transition(ev)
				if ended && (err == nil || after != StateEnded) {
					return false
				}
				if err != nil && after != before {
					return false
				}
				if after == StateEnded {
					ended = true
				}
				select {
				case <-s.Done():
					if !ended {
						return false
					}
				default:
					if ended {
						return false
					}
				}
				switch after {
				case StateListening, StateThinking, StatePlayingReply, StateEnded:
				default:
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(allEvents)-1)),
	))

	properties.Property("thinking and listening flags derive from state", prop.ForAll(
		func(seq []int) bool {
			s := NewSession("MZ", "c")
			for _, i := range seq {
				_, _ = s.Transition(allEvents[i])
				st := s.State()
				if s.Thinking() != (st == StateThinking || st == StatePlayingReply) {
					return false
				}
				if s.Listening() != (st == StatePlayingReply) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(allEvents)-1)),
	))

	properties.TestingRun(t)
}
