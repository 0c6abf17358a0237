/*
包 cache 提供提示音频的两级缓存构件：基于 go-redis 的共享缓存 Manager，
以及进程内的定长 LRU。

# 核心类型

  - Manager：Redis 缓存管理器，按 KeyPrefix 命名空间存取二进制值，
    负责连接检查、后台健康检查与关闭，命中情况上报给 Observer。
  - LRU：并发安全的泛型 LRU，用于进程内热点提示音。
  - Stats：连接池统计，供健康检查与调试使用。

未命中统一返回 ErrCacheMiss，可用 IsCacheMiss 判断。
*/
package cache
