/*
Package types 提供 Callflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 call、speech、
conversation、api 等上层模块提供统一的错误与上下文契约。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - 通话错误码：TRANSPORT_ERROR、DECODE_ERROR、PIPELINE_ERROR、ACK_TIMEOUT 等

# 主要能力

  - Context 传播：WithRequestID / WithCallID / WithStreamSID / WithCaller
  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
*/
package types
