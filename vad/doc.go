/*
Package vad 实现逐帧语音活动检测状态机。

每个会话拥有一个 Detector。每收到一帧，Detector 取帧尾的固定窗口
（不足时补零）交给二元 Classifier 判断是否有语音：

  - 有语音 → Speaking，空闲计数清零
  - 无语音 → 计数加一；计数达到 IdleCut → IdleTriggered 并清零
  - 否则 → NotSpeaking

IdleCut = 最大停顿时长 / 每帧时长。Detector 无终止状态，随会话销毁而结束。
EnergyClassifier 是纯 Go 的能量分类器，Mode 0-3 越大越倾向判定为静音。
*/
package vad
