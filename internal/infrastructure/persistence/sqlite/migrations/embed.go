// Package migrations 内嵌 SQLite 建表脚本
package migrations

import "embed"

// FS 按文件名顺序执行的迁移脚本
//
//go:embed *.sql
var FS embed.FS
