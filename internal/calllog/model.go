package calllog

import (
	"time"

	"github.com/BaSui01/callflow/call"
)

// CallRecord 通话记录表
type CallRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"size:64;uniqueIndex;not null" json:"session_id"`
	StreamSID  string    `gorm:"size:64;index" json:"stream_sid"`
	CallerKey  string    `gorm:"size:32;index:idx_caller_started" json:"caller_key"`
	Stage      string    `gorm:"size:32" json:"stage"`
	StartedAt  time.Time `gorm:"index:idx_caller_started" json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMS int64     `json:"duration_ms"`
	EndReason  string    `gorm:"size:32" json:"end_reason"`
	Turns      int       `gorm:"default:0" json:"turns"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (CallRecord) TableName() string {
	return "cf_call_records"
}

// recordFrom 将通话摘要转换为表记录
func recordFrom(s call.Summary) CallRecord {
	var d time.Duration
	if !s.EndedAt.IsZero() && s.EndedAt.After(s.StartedAt) {
		d = s.EndedAt.Sub(s.StartedAt)
	}
	return CallRecord{
		SessionID:  s.SessionID,
		StreamSID:  s.StreamSID,
		CallerKey:  s.CallerKey,
		Stage:      s.Stage,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
		DurationMS: d.Milliseconds(),
		EndReason:  s.EndReason,
		Turns:      s.Turns,
		Error:      s.Error,
	}
}
