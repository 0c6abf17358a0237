/*
Package handlers 提供 callflow HTTP 接口的请求处理器。

# 概述

对外接口分三类：Twilio 回调（TwiML 来电入口与 /media-stream
WebSocket 媒体流）、运维接口（健康检查、版本、活跃通话与通话记录），
以及统一的 JSON 响应与错误输出。所有 Handler 遵循标准 net/http 接口，
路由使用 Go 1.22 的 ServeMux 模式。

# 核心类型

  - TwilioHandler     ：服务状态与来电 TwiML 响应
  - MediaStreamHandler：升级媒体流连接并交给通话编排器，支持停机排空
  - CallsHandler      ：活跃通话快照与历史通话查询
  - HealthHandler     ：/health、/healthz、/ready、/version
  - Response          ：统一 JSON 响应结构
  - ResponseWriter    ：捕获状态码，保留 Hijack 能力
*/
package handlers
