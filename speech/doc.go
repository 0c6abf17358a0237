/*
包 speech 把来电方语音转换为回复语音，并为固定提示语提供带缓存的合成。

# 核心类型

  - SarvamClient：Sarvam AI 的语音翻译识别、文本翻译与语音合成客户端，
    请求带重试与熔断保护。
  - ConversationPipeline：实现 call.Pipeline，依次执行识别、对话生成、
    翻译与合成；任一步失败即返回错误，由调用方放弃本轮。
  - Responder：实现 call.PromptSynthesizer，翻译失败时回退英文，
    合成结果经进程内 LRU 与可选 Redis 两级缓存。
*/
package speech
