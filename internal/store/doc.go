// 版权所有 2026 DataFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package store 实现用户数据的持久化层。
//
// Store 基于 GORM，支持 PostgreSQL、MySQL 和 SQLite，提供
// 创建、分页列表、整体更新和删除操作，错误统一转换为 types.Error。
package store
