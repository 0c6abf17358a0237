// Package config 提供 Callflow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序合并，
// 覆盖 HTTP 服务、通话轮次引擎、语音后端、对话模型、
// 用户旅程、Redis、数据库、日志与遥测各部分。
package config
