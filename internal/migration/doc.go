/*
包 migration 管理通话记录表的版本化 Schema，基于 golang-migrate，
支持 PostgreSQL、MySQL 与 SQLite。

# 概述

各方言的 SQL 迁移文件通过 embed.FS 内嵌在二进制中。迁移器复用
internal/database 打开的连接（GORM 底层 *sql.DB），不再按驱动名
重新建立连接，因此 SQLite 使用纯 Go 驱动即可运行迁移。

# 核心类型

  - Migrator：封装 golang-migrate 实例，提供 Up/Down/DownAll/Steps/
    Goto/Force/Version/Status/Info/Close。
  - Dialect：postgres / mysql / sqlite。
  - MigrationStatus / MigrationInfo：迁移状态与摘要。
  - CLI：callflow migrate 子命令的终端输出层。
*/
package migration
