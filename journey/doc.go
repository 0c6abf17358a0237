// Package journey 根据来电方所处的用户旅程阶段决定通话流程：
// 播放哪段提示、是否进入对话、使用哪种对话处理器以及何时挂断。
package journey
