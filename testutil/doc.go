/*
Package testutil 提供 callflow 各包测试共用的辅助工具。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout，自动注册 Cleanup
  - 异步等待: WaitFor / WaitForChannel
  - 媒体流连接: WebSocketURL

# 子包

  - testutil/fixtures: 媒体流样例，生成纯音与静音 PCM，
    以及 start/media/mark/stop 事件序列
  - testutil/mocks: 语音后端与对话模型的脚本化实现，
    记录调用并支持错误注入

# 使用示例

	ctx := testutil.TestContext(t)
	backend := mocks.NewSpeechBackend().WithTranscript("namaste", "hi-IN")
	frames := fixtures.MediaFrames("MZ1", fixtures.Tone(4000, 6000), 160)
*/
package testutil
