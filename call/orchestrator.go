package call

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/callflow/audio"
	"github.com/BaSui01/callflow/config"
	"github.com/BaSui01/callflow/transport"
	"github.com/BaSui01/callflow/types"
	"github.com/BaSui01/callflow/vad"
)

const instrumentationName = "github.com/BaSui01/callflow/call"

// Config 轮次编排参数
type Config struct {
	SampleRate       int
	MinSpeechBytes   int
	AckCheckInterval time.Duration
	AckGrace         time.Duration
	StartTimeout     time.Duration
	HangupDelay      time.Duration
	VAD              vad.Config
	VADMode          int
}

// DefaultConfig 返回默认编排参数
func DefaultConfig() Config {
	return Config{
		SampleRate:       audio.SampleRate,
		MinSpeechBytes:   1000,
		AckCheckInterval: 100 * time.Millisecond,
		AckGrace:         3 * time.Second,
		StartTimeout:     10 * time.Second,
		HangupDelay:      5 * time.Second,
		VAD:              vad.DefaultConfig(),
		VADMode:          3,
	}
}

// ConfigFrom 由配置文件构造编排参数，未设置的字段取默认值
func ConfigFrom(cc config.CallConfig) Config {
	cfg := DefaultConfig()
	if cc.SampleRate > 0 {
		cfg.SampleRate = cc.SampleRate
		cfg.VAD.SampleRate = cc.SampleRate
	}
	if cc.ChunkSamples > 0 {
		cfg.VAD.ChunkSamples = cc.ChunkSamples
	}
	if cc.VADWindowSamples > 0 {
		cfg.VAD.WindowSamples = cc.VADWindowSamples
	}
	if cc.IdleTrigger > 0 {
		cfg.VAD.IdleTrigger = cc.IdleTrigger
	}
	if cc.MinSpeechBytes > 0 {
		cfg.MinSpeechBytes = cc.MinSpeechBytes
	}
	if cc.AckCheckInterval > 0 {
		cfg.AckCheckInterval = cc.AckCheckInterval
	}
	if cc.AckGrace > 0 {
		cfg.AckGrace = cc.AckGrace
	}
	if cc.StartTimeout > 0 {
		cfg.StartTimeout = cc.StartTimeout
	}
	if cc.HangupDelay > 0 {
		cfg.HangupDelay = cc.HangupDelay
	}
	cfg.VADMode = cc.VADMode
	return cfg
}

// Orchestrator 为每通电话运行入站与出站循环
type Orchestrator struct {
	cfg      Config
	registry *Registry
	planner  Planner
	prompts  PromptSynthesizer

	newConditioner func() Conditioner
	newDetector    func() Detector

	observer Observer
	recorder Recorder
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

// Option 配置编排器
type Option func(*Orchestrator)

// WithObserver 设置指标观察者
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithRecorder 设置通话记录存储
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithPromptSynthesizer 设置问候语合成器
func WithPromptSynthesizer(p PromptSynthesizer) Option {
	return func(o *Orchestrator) { o.prompts = p }
}

// WithConditioner 设置每通电话的降噪器工厂
func WithConditioner(factory func() Conditioner) Option {
	return func(o *Orchestrator) {
		if factory != nil {
			o.newConditioner = factory
		}
	}
}

// WithDetector 设置每通电话的 VAD 工厂
func WithDetector(factory func() Detector) Option {
	return func(o *Orchestrator) {
		if factory != nil {
			o.newDetector = factory
		}
	}
}

// WithTracer 设置 tracer
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithNow 注入时钟
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator 创建轮次编排器
func NewOrchestrator(cfg Config, registry *Registry, planner Planner, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = NewRegistry(0, logger)
	}
	o := &Orchestrator{
		cfg:      cfg,
		registry: registry,
		planner:  planner,
		observer: nopObserver{},
		tracer:   otel.Tracer(instrumentationName),
		logger:   logger.With(zap.String("component", "call_orchestrator")),
		now:      time.Now,
	}
	o.newConditioner = func() Conditioner { return passthrough{} }
	o.newDetector = func() Detector {
		return vad.NewDetector(cfg.VAD, vad.NewEnergyClassifier(cfg.VADMode))
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry 返回会话注册表
func (o *Orchestrator) Registry() *Registry { return o.registry }

type passthrough struct{}

func (passthrough) Apply(pcm audio.PCM) audio.PCM { return pcm }

// Run 处理一通电话直到结束，传输在返回前关闭
func (o *Orchestrator) Run(ctx context.Context, tr Transport, callerKey string) error {
	start, err := o.awaitStart(ctx, tr)
	if err != nil {
		_ = tr.Close("no start event")
		o.logger.Warn("stream never started", zap.String("caller", callerKey), zap.Error(err))
		return err
	}
	if callerKey == "" && start.Start != nil {
		callerKey = start.Start.CustomParameters["caller"]
	}

	sess := NewSession(start.StreamID(), callerKey, WithClock(o.now))
	logger := o.logger.With(
		zap.String("call_id", sess.ID()),
		zap.String("stream_sid", sess.StreamSID()),
		zap.String("caller", callerKey),
	)

	if err := o.registry.Register(sess); err != nil {
		_ = tr.Close("duplicate stream")
		logger.Warn("session rejected", zap.Error(err))
		return types.NewError(types.ErrSessionConflict, "stream already active").WithCause(err)
	}
	defer o.registry.Remove(sess.StreamSID())

	ctx = types.WithCallID(ctx, sess.ID())
	ctx = types.WithStreamSID(ctx, sess.StreamSID())
	ctx = types.WithCaller(ctx, callerKey)
	ctx, span := o.tracer.Start(ctx, "call.session", trace.WithAttributes(
		attribute.String("stream_sid", sess.StreamSID()),
		attribute.String("caller", callerKey),
	))
	defer span.End()

	o.observer.CallStarted()
	logger.Info("call started")

	plan, err := o.planFor(ctx, callerKey)
	if err != nil {
		logger.Error("call plan failed", zap.Error(err))
		sess.End(EventConversationEnded)
	} else {
		span.SetAttributes(attribute.String("stage", plan.Stage))
		err = o.greet(ctx, sess, tr, plan, logger)
	}

	if err == nil {
		err = o.converse(ctx, sess, tr, plan, logger)
	}
	_ = tr.Close(string(sess.EndReason()))
	if !sess.Ended() {
		sess.End(EventTransportClosed)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")
	}
	o.finish(ctx, sess, plan, err, logger)
	return err
}

func (o *Orchestrator) planFor(ctx context.Context, callerKey string) (Plan, error) {
	if o.planner == nil {
		return Plan{}, errors.New("call: no planner configured")
	}
	plan, err := o.planner.Plan(ctx, callerKey)
	if err != nil {
		return Plan{}, fmt.Errorf("plan call: %w", err)
	}
	if plan.HangupDelay == 0 {
		plan.HangupDelay = o.cfg.HangupDelay
	}
	return plan, nil
}

func (o *Orchestrator) awaitStart(ctx context.Context, tr Transport) (transport.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.StartTimeout)
	defer cancel()

	for {
		ev, err := tr.ReadEvent(ctx)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ev, types.NewError(types.ErrTimeout, "start event not received").WithCause(err)
			}
			return ev, types.NewError(types.ErrTransport, "read before start").WithCause(err)
		}
		switch ev.Event {
		case transport.EventStart:
			if ev.StreamID() == "" {
				return ev, types.NewError(types.ErrMalformedEvent, "start event without streamSid")
			}
			return ev, nil
		case transport.EventStop:
			return ev, types.NewError(types.ErrTransport, "stream stopped before start")
		default:
			o.logger.Debug("event before start ignored", zap.String("event", ev.Event))
		}
	}
}

// greet 播放问候语；无后续对话时该播放为最终播放
func (o *Orchestrator) greet(ctx context.Context, sess *Session, tr Transport, plan Plan, logger *zap.Logger) error {
	final := !plan.Converse
	if plan.Greeting == "" || o.prompts == nil {
		if final {
			sess.End(EventConversationEnded)
		}
		return nil
	}

	pcm, err := o.prompts.Synthesize(ctx, plan.Greeting, plan.Language)
	var payload string
	if err == nil {
		payload, err = audio.EncodePayload(pcm)
	}
	if err != nil || len(pcm) == 0 {
		logger.Warn("greeting unavailable", zap.Error(err))
		if final {
			sess.End(EventConversationEnded)
		}
		return nil
	}

	dur := audio.PCM(pcm).Duration(o.cfg.SampleRate)
	if err := sess.BeginPlayback(TagPrompt, dur, o.cfg.AckGrace, final); err != nil {
		return nil
	}
	if err := tr.SendMedia(ctx, sess.StreamSID(), payload); err != nil {
		sess.End(EventTransportClosed)
		return types.NewError(types.ErrTransport, "send greeting audio").WithCause(err)
	}
	if err := tr.SendMark(ctx, sess.StreamSID(), TagPrompt); err != nil {
		sess.End(EventTransportClosed)
		return types.NewError(types.ErrTransport, "send greeting mark").WithCause(err)
	}
	logger.Info("greeting sent", zap.String("stage", plan.Stage), zap.Duration("duration", dur))
	return nil
}

// converse 并发运行入站、出站循环与挂断协程
func (o *Orchestrator) converse(ctx context.Context, sess *Session, tr Transport, plan Plan, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	in := &inboundLoop{
		sess:     sess,
		tr:       tr,
		cond:     o.newConditioner(),
		detector: o.newDetector(),
		observer: o.observer,
		logger:   logger.With(zap.String("loop", "inbound")),
	}
	out := &outboundLoop{
		sess:     sess,
		tr:       tr,
		pipeline: plan.Pipeline,
		handler:  plan.Handler,
		observer: o.observer,
		tracer:   o.tracer,
		logger:   logger.With(zap.String("loop", "outbound")),
		cfg:      o.cfg,
		now:      o.now,
	}

	g.Go(guard("inbound", sess, logger, func() error { return in.run(gctx) }))
	g.Go(guard("outbound", sess, logger, func() error { return out.run(gctx) }))
	g.Go(func() error {
		select {
		case <-sess.Done():
		case <-gctx.Done():
			sess.End(EventTransportClosed)
		}
		if r := sess.EndReason(); r == EventReplyAcked || r == EventAckTimedOut {
			timer := time.NewTimer(plan.HangupDelay)
			select {
			case <-timer.C:
			case <-gctx.Done():
			}
			timer.Stop()
		}
		return tr.Close(string(sess.EndReason()))
	})

	return g.Wait()
}

// guard 在循环边界记录错误并把 panic 转为错误
func guard(name string, sess *Session, logger *zap.Logger, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sess.End(EventTransportClosed)
				logger.Error("loop panicked",
					zap.String("loop", name),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				err = types.NewError(types.ErrInternalError, fmt.Sprintf("%s loop panic: %v", name, r))
			}
		}()
		if err = fn(); err != nil {
			logger.Warn("loop exited with error", zap.String("loop", name), zap.Error(err))
		}
		return err
	}
}

func (o *Orchestrator) finish(ctx context.Context, sess *Session, plan Plan, err error, logger *zap.Logger) {
	info := sess.Info()
	duration := o.now().Sub(info.StartedAt)
	o.observer.CallEnded(string(info.EndReason), duration)

	logger.Info("call ended",
		zap.String("reason", string(info.EndReason)),
		zap.Int("turns", info.Turns),
		zap.Duration("duration", duration),
	)

	if plan.OnComplete != nil && plan.Handler != nil && plan.Handler.IsConversationEnded() {
		if cerr := plan.OnComplete(context.WithoutCancel(ctx)); cerr != nil {
			logger.Error("call completion hook failed", zap.Error(cerr))
		}
	}

	if o.recorder == nil {
		return
	}
	sum := Summary{
		SessionID: info.ID,
		StreamSID: info.StreamSID,
		CallerKey: info.CallerKey,
		Stage:     plan.Stage,
		StartedAt: info.StartedAt,
		EndedAt:   o.now(),
		EndReason: string(info.EndReason),
		Turns:     info.Turns,
	}
	if err != nil {
		sum.Error = err.Error()
	}
	o.recorder.Record(context.WithoutCancel(ctx), sum)
}
