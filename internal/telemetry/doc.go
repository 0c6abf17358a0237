// Package telemetry 初始化 OpenTelemetry SDK，为通话会话、轮次与语音后端
// 调用提供全局 TracerProvider 和 MeterProvider。
// 禁用时保持全局 noop 实现，不连接任何外部服务。
package telemetry
