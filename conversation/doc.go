/*
包 conversation 管理一通电话里的人机对话：记录历史、按 Token 预算裁剪、
调用对话模型生成下一句回复，并判断对话是否完成。

# 核心类型

  - Handler：语音管线使用的对话接口。
  - History：并发安全的对话历史，使用 tiktoken 计数裁剪。
  - ChatModel / OpenAIModel：OpenAI 兼容的 /chat/completions 客户端。
  - QuestionnaireHandler：逐题收集问卷答案，全部答完即结束。
  - AdviceHandler：围绕顾问建议文档答疑，模型输出结束标记即结束。
*/
package conversation
