/*
包 transport 定义电话媒体流（Twilio Media Streams）的事件模型，
并提供基于 WebSocket 的双向传输实现。

# 事件

入站事件包括 connected、start、media、mark 与 stop；出站消息包括
media（base64 μ-law 音频）与 mark（播放完成确认标签）。未知事件
原样解析后交由调用方忽略。

# 传输

WebSocketTransport 封装 github.com/coder/websocket 连接：读取按
帧解析 JSON，写入通过互斥锁串行化，多个协程可安全并发发送。
*/
package transport
