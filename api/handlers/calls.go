package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/callflow/call"
	"github.com/BaSui01/callflow/internal/calllog"
	"github.com/BaSui01/callflow/types"
)

// CallHistory 通话记录查询
type CallHistory interface {
	List(ctx context.Context, limit int) ([]calllog.CallRecord, error)
	ByCaller(ctx context.Context, callerKey string, limit int) ([]calllog.CallRecord, error)
}

// ActiveCalls 活跃通话快照响应
type ActiveCalls struct {
	Active int                `json:"active"`
	Calls  []call.SessionInfo `json:"calls"`
}

// CallsHandler 处理 /v1/calls
type CallsHandler struct {
	registry *call.Registry
	history  CallHistory
	logger   *zap.Logger
}

// NewCallsHandler 创建处理器，history 为空时历史查询返回 404
func NewCallsHandler(registry *call.Registry, history CallHistory, logger *zap.Logger) *CallsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallsHandler{registry: registry, history: history, logger: logger.With(zap.String("component", "calls_api"))}
}

// HandleActive 处理 GET /v1/calls
func (h *CallsHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	calls := h.registry.Snapshot()
	if calls == nil {
		calls = []call.SessionInfo{}
	}
	WriteSuccess(w, r, ActiveCalls{Active: len(calls), Calls: calls})
}

// HandleHistory 处理 GET /v1/calls/history?caller=&limit=
func (h *CallsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteError(w, r, types.NewError(types.ErrNotFound, "call history is disabled"), h.logger)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, r, types.NewError(types.ErrInvalidRequest, "limit must be a positive integer"), h.logger)
			return
		}
		limit = n
	}

	var (
		recs []calllog.CallRecord
		err  error
	)
	if caller := r.URL.Query().Get("caller"); caller != "" {
		recs, err = h.history.ByCaller(r.Context(), NormalizeCaller(caller), limit)
	} else {
		recs, err = h.history.List(r.Context(), limit)
	}
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "query call history").WithCause(err), h.logger)
		return
	}
	if recs == nil {
		recs = []calllog.CallRecord{}
	}
	WriteSuccess(w, r, recs)
}
