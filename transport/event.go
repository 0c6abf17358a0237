package transport

// 入站与出站事件类型
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
	EventClear     = "clear"
)

// Event 是媒体流上的一条 JSON 消息
type Event struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSID      string        `json:"streamSid,omitempty"`
	Protocol       string        `json:"protocol,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Mark           *MarkPayload  `json:"mark,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
}

// StartPayload 描述 start 事件
type StartPayload struct {
	StreamSID        string            `json:"streamSid"`
	AccountSID       string            `json:"accountSid,omitempty"`
	CallSID          string            `json:"callSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      *MediaFormat      `json:"mediaFormat,omitempty"`
}

// MediaFormat 描述媒体编码
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload 承载 base64 编码的 μ-law 音频
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// MarkPayload 承载播放确认标签
type MarkPayload struct {
	Name string `json:"name"`
}

// StopPayload 描述 stop 事件
type StopPayload struct {
	AccountSID string `json:"accountSid,omitempty"`
	CallSID    string `json:"callSid,omitempty"`
}

// StreamID 返回事件携带的流标识，start 事件优先取 start.streamSid
func (e Event) StreamID() string {
	if e.Start != nil && e.Start.StreamSID != "" {
		return e.Start.StreamSID
	}
	return e.StreamSID
}

// MarkName 返回 mark 事件的标签，非 mark 事件返回空串
func (e Event) MarkName() string {
	if e.Mark == nil {
		return ""
	}
	return e.Mark.Name
}

// MediaMessage 构造出站音频消息
func MediaMessage(streamSID, payload string) Event {
	return Event{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     &MediaPayload{Payload: payload},
	}
}

// MarkMessage 构造出站 mark 消息
func MarkMessage(streamSID, name string) Event {
	return Event{
		Event:     EventMark,
		StreamSID: streamSID,
		Mark:      &MarkPayload{Name: name},
	}
}

// ClearMessage 构造清空远端播放缓冲的消息
func ClearMessage(streamSID string) Event {
	return Event{Event: EventClear, StreamSID: streamSID}
}
