// Package resilience 为语音与模型后端调用提供指数退避重试与熔断。
//
// Retryer 只重试 types.IsRetryable 判定为可重试的错误；Breaker 只把
// 上游故障计入失败，客户端错误（INVALID_REQUEST 等）不会触发熔断。
package resilience
