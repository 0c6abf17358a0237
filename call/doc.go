/*
包 call 实现电话媒体流上的双工轮次控制引擎。

# 概述

每通电话对应一个 Session，由 Orchestrator 在收到 start 事件后创建并
注册到 Registry（按 streamSid 分片的并发表）。随后并发运行两个循环：

  - 入站循环：按到达顺序读取事件，media 帧经 μ-law 解码、降噪和 VAD
    判定后写入语音缓冲；检测到停顿时触发 PauseDetected。
  - 出站循环：等待 TurnReady 信号，取出缓冲交给 Pipeline 生成回复，
    发送音频与 mark，并以定时器检查播放确认超时。

# 状态机

Session 只有一个权威状态：

	Listening --PauseDetected--> Thinking
	Thinking --TurnDiscarded--> Listening
	Listening/Thinking --ReplySent--> PlayingReply
	PlayingReply --ReplyAcked/AckTimedOut--> Listening（最终回复进入 Ended）
	任意状态 --ConversationEnded/TransportClosed--> Ended

语音只在 Listening 状态追加，因此等待回复期间缓冲不会增长。
*/
package call
