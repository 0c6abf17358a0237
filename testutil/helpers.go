package testutil

import (
	"context"
	"strings"
	"testing"
	"time"
)

// pollInterval WaitFor 轮询间隔
const pollInterval = 5 * time.Millisecond

// TestContext 返回 30 秒超时的测试上下文
func TestContext(t *testing.T) context.Context {
	t.Helper()
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout 返回带超时的测试上下文，不会晚于 go test -timeout 的截止时间
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	deadline := time.Now().Add(timeout)
	if d, ok := t.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	t.Cleanup(cancel)
	return ctx
}

// WaitFor 轮询条件直到满足或超时，返回最后一次检查结果
func WaitFor(cond func() bool, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-timer.C:
			return cond()
		case <-tick.C:
		}
	}
}

// WaitForChannel 等待通道接收一个值或超时
func WaitForChannel[T any](ch <-chan T, timeout time.Duration) (T, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-timer.C:
		var zero T
		return zero, false
	}
}

// WebSocketURL 将 httptest 服务地址转换为 ws:// 地址并拼接路径
func WebSocketURL(httpURL, path string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://") + path
	default:
		return "ws://" + strings.TrimPrefix(httpURL, "http://") + path
	}
}
