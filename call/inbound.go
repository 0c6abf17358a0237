package call

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/callflow/audio"
	"github.com/BaSui01/callflow/transport"
	"github.com/BaSui01/callflow/types"
	"github.com/BaSui01/callflow/vad"
)

// inboundLoop 按到达顺序消费传输事件
type inboundLoop struct {
	sess     *Session
	tr       Transport
	cond     Conditioner
	detector Detector
	observer Observer
	logger   *zap.Logger
}

func (l *inboundLoop) run(ctx context.Context) error {
	for {
		ev, err := l.tr.ReadEvent(ctx)
		if err != nil {
			if l.sess.Ended() || ctx.Err() != nil {
				return nil
			}
			l.sess.End(EventTransportClosed)
			if types.IsErrorCode(err, types.ErrMalformedEvent) {
				return err
			}
			return types.NewError(types.ErrTransport, "inbound read failed").WithCause(err)
		}
		if l.handle(ev) {
			return nil
		}
	}
}

// handle 处理单个事件，返回 true 表示循环应退出
func (l *inboundLoop) handle(ev transport.Event) bool {
	switch ev.Event {
	case transport.EventStart:
		l.logger.Debug("duplicate start event ignored", zap.String("stream_sid", ev.StreamID()))

	case transport.EventMark:
		name := ev.MarkName()
		if l.sess.AckMark(name) {
			l.logger.Debug("playback acknowledged",
				zap.String("mark", name),
				zap.String("state", string(l.sess.State())),
			)
		}

	case transport.EventMedia:
		l.handleMedia(ev.Media)

	case transport.EventStop:
		l.logger.Info("stream stopped by remote")
		l.sess.End(EventTransportClosed)

	default:
	}
	return l.sess.Ended()
}

func (l *inboundLoop) handleMedia(m *transport.MediaPayload) {
	if l.sess.State() != StateListening {
		return
	}
	if m == nil || m.Payload == "" {
		l.observer.FrameDropped("empty")
		return
	}

	pcm, err := audio.DecodePayload(m.Payload)
	if err != nil {
		l.logger.Warn("dropping undecodable frame", zap.Error(err))
		l.observer.FrameDropped("decode")
		return
	}
	pcm = l.cond.Apply(pcm)

	state, err := l.detector.Detect(pcm)
	if err != nil {
		l.logger.Warn("dropping frame rejected by vad", zap.Error(err))
		l.observer.FrameDropped("vad")
		return
	}

	switch state {
	case vad.Speaking:
		if !l.sess.AppendFrame(pcm) {
			l.observer.FrameDropped("not_listening")
		}
	case vad.IdleTriggered:
		l.observer.IdleTriggered()
		if _, err := l.sess.Transition(EventPauseDetected); err != nil {
			l.logger.Debug("pause ignored", zap.Error(err))
		}
	}
}
