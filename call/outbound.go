package call

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/callflow/audio"
	"github.com/BaSui01/callflow/types"
)

// outboundLoop 在检测到停顿后生成并发送回复
type outboundLoop struct {
	sess     *Session
	tr       Transport
	pipeline Pipeline
	handler  EndChecker
	observer Observer
	tracer   trace.Tracer
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
}

func (l *outboundLoop) run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.AckCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.sess.Done():
			return nil
		case <-l.sess.TurnReady():
			if err := l.takeTurn(ctx); err != nil {
				return err
			}
		case <-ticker.C:
			l.checkAck()
		}
	}
}

func (l *outboundLoop) checkAck() {
	tag, expired := l.sess.ExpirePlayback(l.now())
	if !expired {
		return
	}
	l.observer.AckTimedOut(tag)
	l.logger.Warn("playback mark not acknowledged in time",
		zap.String("mark", tag),
		zap.String("state", string(l.sess.State())),
	)
}

func (l *outboundLoop) discard(result string, started time.Time, bytes int) {
	if _, err := l.sess.Transition(EventTurnDiscarded); err != nil {
		l.logger.Debug("discard ignored", zap.Error(err))
	}
	l.observer.TurnCompleted(result, l.now().Sub(started), bytes)
}

func (l *outboundLoop) takeTurn(ctx context.Context) error {
	if l.sess.State() != StateThinking {
		return nil
	}
	started := l.now()

	buffered := l.sess.BufferedBytes()
	if buffered < l.cfg.MinSpeechBytes || l.pipeline == nil {
		// 缓冲保留，后续语音继续追加
		l.discard(TurnShort, started, 0)
		return nil
	}

	pcm := l.sess.TakeBuffer()
	// 挂断或 stop 事件取消进行中的 STT、模型与 TTS 请求
	ctx, cancel := l.sess.Bind(ctx)
	defer cancel()
	ctx, span := l.tracer.Start(ctx, "call.turn", trace.WithAttributes(
		attribute.String("stream_sid", l.sess.StreamSID()),
		attribute.Int("speech_bytes", len(pcm)),
	))
	defer span.End()

	reply, err := l.pipeline.Respond(ctx, pcm)
	if err == nil && len(reply) == 0 {
		err = types.NewError(types.ErrPipeline, "pipeline returned no audio")
	}
	var payload string
	if err == nil {
		payload, err = audio.EncodePayload(reply)
	}
	if err != nil && errors.Is(context.Cause(ctx), ErrSessionEnded) {
		span.SetStatus(codes.Error, "call ended during turn")
		l.logger.Info("turn cancelled, call ended", zap.Int("bytes", len(pcm)))
		l.observer.TurnCompleted(TurnCancelled, l.now().Sub(started), len(pcm))
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		l.logger.Warn("turn abandoned", zap.Int("bytes", len(pcm)), zap.Error(err))
		l.discard(TurnFailed, started, len(pcm))
		return nil
	}

	final := l.handler != nil && l.handler.IsConversationEnded()
	dur := audio.PCM(reply).Duration(l.cfg.SampleRate)
	if err := l.sess.BeginPlayback(TagReply, dur, l.cfg.AckGrace, final); err != nil {
		l.logger.Debug("reply dropped", zap.Error(err))
		return nil
	}
	l.sess.recordTurn()

	sid := l.sess.StreamSID()
	if err := l.tr.SendMedia(ctx, sid, payload); err != nil {
		l.sess.End(EventTransportClosed)
		span.RecordError(err)
		return types.NewError(types.ErrTransport, "send reply audio").WithCause(err)
	}
	if err := l.tr.SendMark(ctx, sid, TagReply); err != nil {
		l.sess.End(EventTransportClosed)
		span.RecordError(err)
		return types.NewError(types.ErrTransport, "send reply mark").WithCause(err)
	}

	span.SetAttributes(attribute.Bool("final", final), attribute.Int64("reply_ms", dur.Milliseconds()))
	l.observer.TurnCompleted(TurnReplied, l.now().Sub(started), len(pcm))
	l.logger.Info("reply sent",
		zap.Int("speech_bytes", len(pcm)),
		zap.Int("reply_bytes", len(reply)),
		zap.Duration("reply_duration", dur),
		zap.Bool("final", final),
	)
	return nil
}
