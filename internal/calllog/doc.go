/*
Package calllog 持久化通话摘要。

每通电话结束时编排器提交一条 call.Summary，Store 将其异步写入
GORM 管理的数据库（PostgreSQL、MySQL 或 SQLite），写入失败时按
瞬时错误重试，不阻塞媒体流的收尾。
*/
package calllog
