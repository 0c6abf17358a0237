// Package tlsutil 为上游语音/对话接口客户端与 Redis 连接提供统一的 TLS 设置。
//
// 客户端统一使用 TLS 1.2 以上版本与 AEAD 密码套件；HTTP 传输层的连接池参数
// 按通话场景调整，单个上游主机保留较多空闲连接以支撑并发通话的转写与合成请求。
package tlsutil
