package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/callflow/types"
)

// ErrClosed 表示传输已被本端关闭
var ErrClosed = errors.New("transport: closed")

// Options 配置 WebSocket 传输
type Options struct {
	// ReadLimit 单条消息最大字节数
	ReadLimit int64
	// WriteTimeout 单次写入超时
	WriteTimeout time.Duration
	// OriginPatterns 允许的跨域来源
	OriginPatterns []string
}

// DefaultOptions 返回默认传输配置
func DefaultOptions() Options {
	return Options{
		ReadLimit:    1 << 20,
		WriteTimeout: 5 * time.Second,
	}
}

// WebSocketTransport 是 call.Transport 的 WebSocket 实现
type WebSocketTransport struct {
	conn   *websocket.Conn
	opts   Options
	logger *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Accept 升级 HTTP 请求为媒体流连接
func Accept(w http.ResponseWriter, r *http.Request, opts Options, logger *zap.Logger) (*WebSocketTransport, error) {
	// 媒体流持续整通电话，清除 http.Server 的读写截止时间
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: opts.OriginPatterns,
	})
	if err != nil {
		return nil, types.NewError(types.ErrTransport, "websocket accept failed").WithCause(err)
	}
	return NewWebSocketTransport(conn, opts, logger), nil
}

// NewWebSocketTransport 包装已建立的 WebSocket 连接
func NewWebSocketTransport(conn *websocket.Conn, opts Options, logger *zap.Logger) *WebSocketTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReadLimit > 0 {
		conn.SetReadLimit(opts.ReadLimit)
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultOptions().WriteTimeout
	}
	return &WebSocketTransport{
		conn:   conn,
		opts:   opts,
		logger: logger.With(zap.String("component", "ws_transport")),
		closed: make(chan struct{}),
	}
}

// ReadEvent 阻塞读取下一条事件。
// 连接关闭返回 ErrTransport，无法解析的 JSON 返回 ErrMalformedEvent。
func (t *WebSocketTransport) ReadEvent(ctx context.Context) (Event, error) {
	var ev Event
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		select {
		case <-t.closed:
			return ev, types.NewError(types.ErrTransport, "transport closed").WithCause(ErrClosed)
		default:
		}
		return ev, types.NewError(types.ErrTransport, "read failed").WithCause(err)
	}
	if typ != websocket.MessageText {
		return ev, types.NewError(types.ErrMalformedEvent, "unexpected binary frame")
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, types.NewError(types.ErrMalformedEvent, "invalid event json").WithCause(err)
	}
	return ev, nil
}

// SendMedia 发送一段 base64 μ-law 音频
func (t *WebSocketTransport) SendMedia(ctx context.Context, streamSID, payload string) error {
	return t.write(ctx, MediaMessage(streamSID, payload))
}

// SendMark 发送播放确认标签
func (t *WebSocketTransport) SendMark(ctx context.Context, streamSID, name string) error {
	return t.write(ctx, MarkMessage(streamSID, name))
}

// SendClear 请求远端丢弃尚未播放的音频
func (t *WebSocketTransport) SendClear(ctx context.Context, streamSID string) error {
	return t.write(ctx, ClearMessage(streamSID))
}

func (t *WebSocketTransport) write(ctx context.Context, msg Event) error {
	select {
	case <-t.closed:
		return types.NewError(types.ErrTransport, "write on closed transport").WithCause(ErrClosed)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.WriteTimeout)
	defer cancel()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := wsjson.Write(ctx, t.conn, msg); err != nil {
		return types.NewError(types.ErrTransport, "write "+msg.Event+" failed").WithCause(err)
	}
	return nil
}

// Close 以正常状态码关闭连接，可重复调用
func (t *WebSocketTransport) Close(reason string) error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		if len(reason) > 120 {
			reason = reason[:120]
		}
		err = t.conn.Close(websocket.StatusNormalClosure, reason)
		if err != nil && websocket.CloseStatus(err) == -1 {
			t.logger.Debug("websocket close returned error", zap.Error(err))
		}
	})
	return nil
}
