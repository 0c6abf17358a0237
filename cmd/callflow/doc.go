/*
Package main 提供 Callflow 服务端程序入口。

# 概述

cmd/callflow 接听 Twilio 来电：/incoming-call 返回连接媒体流的 TwiML，
/media-stream/{caller} 升级为 WebSocket 并交给 call.Orchestrator 运行轮次。
程序支持 YAML 配置与 CALLFLOW_ 前缀环境变量、zap 结构化日志、
Prometheus 指标（独立端口）以及 OpenTelemetry 追踪。

# 核心类型

  - Server    ：组装存储、语音后端、旅程规划、编排器与 HTTP 端点
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、migrate（通话记录表）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、Observe（span、指标、
    访问日志）、CORS；/incoming-call 另加按 IP 的 RateLimiter
  - 优雅关闭：收到信号后排空进行中的通话，再关闭 HTTP 与 Metrics 服务，
    最后刷新通话记录并释放数据库、Redis 与遥测资源
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
