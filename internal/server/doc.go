/*
包 server 管理 callflow 进程内各 HTTP 监听的生命周期。

# 概述

一个进程通常同时运行两个监听：对外的媒体服务（TwiML 入口与
/media-stream WebSocket）与仅供抓取的 Prometheus 指标服务。
Manager 统一完成监听绑定、并发服务、关闭钩子与优雅停机，
任一监听异常退出都会触发整体关闭。

# 核心类型

  - Endpoint：单个监听的名称、地址、处理器与超时设置。
  - Manager：持有全部 Endpoint，Listen 绑定端口，Serve 阻塞运行
    直到上下文取消或任一服务失败。
  - Hook：停机时在 http.Server.Shutdown 之前执行的回调，
    用于挂断仍在进行的通话。
*/
package server
