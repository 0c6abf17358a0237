/*
包 database 打开通话记录库并托管连接池。

Open 按驱动名（postgres、mysql、sqlite）选择 GORM 方言，sqlite 走纯 Go 的
glebarez 驱动。PoolManager 在其上设置连接上限，后台定时探活并把连接数与事务
耗时交给 Observer（通常是 metrics.Collector）。

WithTransactionRetry 借助 resilience.Retryer 重试事务，只有锁冲突、序列化失败
和断连这类瞬时错误会重试，约束冲突等错误直接返回。
*/
package database
