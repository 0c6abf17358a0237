/*
Package metrics 提供基于 Prometheus 的通话链路指标采集。

Collector 同时实现 call.Observer、upstream.Observer、cache.Observer 与
database 的连接池观察接口，由各组件直接调用。指标按子系统命名：

  - http：请求数、耗时、响应大小，状态码归为 2xx/3xx/4xx/5xx
  - call：活跃会话、按原因统计的结束通话与时长、轮次结果与延迟、丢弃帧、确认超时
  - vad：停顿触发次数
  - upstream：语音与模型后端请求次数与耗时
  - cache：按结果区分的缓存查找次数
  - db：连接池连接数与写入耗时

默认注册到全局 Registry；WithRegistry 使用独立 Registry 并附带 Go 运行时指标，
Handler 返回对应的 /metrics 处理器。
*/
package metrics
