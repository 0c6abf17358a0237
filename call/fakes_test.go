package call

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/callflow/audio"
	"github.com/BaSui01/callflow/transport"
	"github.com/BaSui01/callflow/types"
	"github.com/BaSui01/callflow/vad"
)

// --- fakeTransport ---

type fakeTransport struct {
	in     chan transport.Event
	readFn func(ctx context.Context) (transport.Event, error)

	mu      sync.Mutex
	sent    []transport.Event
	sentCh  chan transport.Event
	sendErr error

	closeOnce   sync.Once
	closed      chan struct{}
	closeReason string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan transport.Event, 256),
		sentCh: make(chan transport.Event, 256),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) push(evs ...transport.Event) {
	for _, ev := range evs {
		f.in <- ev
	}
}

func (f *fakeTransport) ReadEvent(ctx context.Context) (transport.Event, error) {
	if f.readFn != nil {
		return f.readFn(ctx)
	}
	select {
	case ev := <-f.in:
		return ev, nil
	case <-f.closed:
		return transport.Event{}, types.NewError(types.ErrTransport, "closed").WithCause(transport.ErrClosed)
	case <-ctx.Done():
		return transport.Event{}, ctx.Err()
	}
}

func (f *fakeTransport) record(ev transport.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, ev)
	f.sentCh <- ev
	return nil
}

func (f *fakeTransport) SendMedia(_ context.Context, sid, payload string) error {
	return f.record(transport.MediaMessage(sid, payload))
}

func (f *fakeTransport) SendMark(_ context.Context, sid, name string) error {
	return f.record(transport.MarkMessage(sid, name))
}

func (f *fakeTransport) Close(reason string) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closeReason = reason
		f.mu.Unlock()
		close(f.closed)
	})
	return nil
}

func (f *fakeTransport) Sent() []transport.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Event(nil), f.sent...)
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// waitSent 等待下一条出站消息
func (f *fakeTransport) waitSent(t *testing.T) transport.Event {
	t.Helper()
	select {
	case ev := <-f.sentCh:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for outbound message")
		return transport.Event{}
	}
}

// --- fakePipeline ---

type fakePipeline struct {
	mu    sync.Mutex
	calls [][]byte
	fn    func(pcm []byte) ([]byte, error)
}

func (p *fakePipeline) Respond(_ context.Context, pcm []byte) ([]byte, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]byte(nil), pcm...))
	fn := p.fn
	p.mu.Unlock()
	if fn == nil {
		return nil, errors.New("no reply")
	}
	return fn(pcm)
}

func (p *fakePipeline) Calls() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.calls...)
}

// blockingPipeline 在 ctx 取消或 release 关闭前阻塞
type blockingPipeline struct {
	entered chan struct{}
	release chan struct{}
	cause   chan error
}

func newBlockingPipeline() *blockingPipeline {
	return &blockingPipeline{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		cause:   make(chan error, 1),
	}
}

func (p *blockingPipeline) Respond(ctx context.Context, _ []byte) ([]byte, error) {
	p.entered <- struct{}{}
	select {
	case <-ctx.Done():
		p.cause <- context.Cause(ctx)
		return nil, ctx.Err()
	case <-p.release:
		return pcmOf(1600), nil
	}
}

// --- 其他 fake ---

type endFlag bool

func (e endFlag) IsConversationEnded() bool { return bool(e) }

type fakePlanner struct {
	plan Plan
	err  error
}

func (p fakePlanner) Plan(context.Context, string) (Plan, error) { return p.plan, p.err }

type fakePrompts struct {
	pcm []byte
	err error
}

func (p fakePrompts) Synthesize(context.Context, string, string) ([]byte, error) { return p.pcm, p.err }

type scriptedDetector struct {
	states []vad.State
	i      int
}

func (d *scriptedDetector) Detect(audio.PCM) (vad.State, error) {
	if d.i >= len(d.states) {
		return vad.NotSpeaking, nil
	}
	s := d.states[d.i]
	d.i++
	return s, nil
}

type countingObserver struct {
	mu      sync.Mutex
	started int
	ended   []string
	turns   []string
	idle    int
	dropped map[string]int
	acks    []string
}

func newCountingObserver() *countingObserver {
	return &countingObserver{dropped: make(map[string]int)}
}

func (o *countingObserver) CallStarted() {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *countingObserver) CallEnded(reason string, _ time.Duration) {
	o.mu.Lock()
	o.ended = append(o.ended, reason)
	o.mu.Unlock()
}

func (o *countingObserver) TurnCompleted(result string, _ time.Duration, _ int) {
	o.mu.Lock()
	o.turns = append(o.turns, result)
	o.mu.Unlock()
}

func (o *countingObserver) IdleTriggered() {
	o.mu.Lock()
	o.idle++
	o.mu.Unlock()
}

func (o *countingObserver) FrameDropped(reason string) {
	o.mu.Lock()
	o.dropped[reason]++
	o.mu.Unlock()
}

func (o *countingObserver) AckTimedOut(tag string) {
	o.mu.Lock()
	o.acks = append(o.acks, tag)
	o.mu.Unlock()
}

type chanRecorder chan Summary

func (r chanRecorder) Record(_ context.Context, s Summary) { r <- s }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// --- 事件构造 ---

func startEvent(sid string) transport.Event {
	return transport.Event{Event: transport.EventStart, Start: &transport.StartPayload{StreamSID: sid}}
}

func markEvent(name string) transport.Event {
	return transport.Event{Event: transport.EventMark, Mark: &transport.MarkPayload{Name: name}}
}

func mediaEvent(t *testing.T, amplitude int16) transport.Event {
	t.Helper()
	samples := make([]int16, audio.ChunkSamples)
	for i := range samples {
		samples[i] = amplitude
	}
	payload, err := audio.EncodePayload(audio.PCMFromSamples(samples))
	require.NoError(t, err)
	return transport.Event{Event: transport.EventMedia, Media: &transport.MediaPayload{Payload: payload}}
}

func pcmOf(n int) audio.PCM {
	return make(audio.PCM, n)
}
