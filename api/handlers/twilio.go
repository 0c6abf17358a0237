package handlers

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/callflow/types"
)

// =============================================================================
// ☎️ Twilio 回调
// =============================================================================

// MediaStreamPath 媒体流路由前缀
const MediaStreamPath = "/media-stream/"

// twimlResponse <Response><Connect><Stream url="..."/></Connect></Response>
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Connect struct {
		Stream struct {
			URL string `xml:"url,attr"`
		} `xml:"Stream"`
	} `xml:"Connect"`
}

// TwilioHandler 处理服务状态与来电回调
type TwilioHandler struct {
	publicHost string
	logger     *zap.Logger
}

// NewTwilioHandler 创建处理器，publicHost 为空时使用请求的 Host
func NewTwilioHandler(publicHost string, logger *zap.Logger) *TwilioHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TwilioHandler{publicHost: publicHost, logger: logger.With(zap.String("component", "twilio"))}
}

// HandleIndex 处理 GET /
func (h *TwilioHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteError(w, r, types.NewError(types.ErrNotFound, "route not found"), nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "callflow media server is running"})
}

// HandleIncomingCall 处理 GET|POST /incoming-call，返回连接媒体流的 TwiML
func (h *TwilioHandler) HandleIncomingCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "invalid form body").WithCause(err), h.logger)
		return
	}
	caller := NormalizeCaller(r.FormValue("Caller"))
	h.logger.Info("incoming call", zap.String("caller", caller))

	host := h.publicHost
	if host == "" {
		host = r.Host
	}
	var resp twimlResponse
	resp.Connect.Stream.URL = StreamURL(host, caller)

	body, err := xml.Marshal(resp)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "render twiml").WithCause(err), h.logger)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}

// NormalizeCaller 去掉 +91 国家码、连字符与空格
func NormalizeCaller(raw string) string {
	return strings.NewReplacer("+91", "", "-", "", " ", "").Replace(raw)
}

// StreamURL 拼接媒体流 WebSocket 地址
func StreamURL(host, caller string) string {
	u := url.URL{Scheme: "wss", Host: host, Path: MediaStreamPath + caller}
	return u.String()
}
