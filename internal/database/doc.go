// 版权所有 2026 DataFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package database 提供数据库连接池管理。
//
// PoolManager 包装 GORM 连接，负责连接池参数调优、周期健康检查
// （统计信息上报给指标收集器）以及带重试的事务执行。
package database
