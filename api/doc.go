// Package api 汇总 Callflow 对外暴露的 HTTP 接口。
//
// # 接口概览
//
// 媒体服务端口（默认 5050）：
//   - GET|POST /incoming-call：Twilio 来电 webhook，返回连接媒体流的 TwiML
//   - GET /media-stream/{caller}：Twilio 媒体流 WebSocket，一条连接对应一通电话
//   - GET /v1/calls：当前活跃通话快照
//   - GET /v1/calls/history?caller=&limit=：历史通话记录，需启用数据库
//   - GET /health、/healthz：存活检查
//   - GET /ready、/readyz：就绪检查（Redis、数据库）
//   - GET /version：构建信息
//
// 指标端口（默认 9091）：
//   - GET /metrics：Prometheus 指标
//
// # 错误响应
//
// 除 TwiML 与 WebSocket 外，所有接口返回统一 JSON 结构：
//
//	{"success": false, "error": {"code": "RATE_LIMITED", "message": "..."}, "timestamp": "..."}
//
// 处理器实现位于 api/handlers。
package api
