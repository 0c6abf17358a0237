/*
Package audio 提供电话媒体流使用的音频帧编解码。

# 概述

电话媒体流以 8kHz 单声道 G.711 μ-law 传输，每 20ms 一帧（160 字节）。
引擎内部统一使用 16 位小端线性 PCM。本包在两者之间做逐位精确的转换，
并提供采样切片、尾窗截取与时长计算等辅助函数。

# 核心类型

  - PCM：16 位小端单声道线性音频字节
  - DecodeULaw / EncodeULaw：μ-law ↔ PCM
  - DecodePayload / EncodePayload：base64 媒体负载 ↔ PCM

所有函数均为纯函数，无共享状态，可并发调用。
*/
package audio
