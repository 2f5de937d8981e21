// Copyright (c) DataFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 DataFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 DataFlow 所有 HTTP 端点的请求处理逻辑，
包括用户数据 CRUD、健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - UserDataHandler  — 用户数据 CRUD（/data, /data/{id}）
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - ErrorResponse    — 统一 JSON 错误响应结构（success + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - HealthCheck      — 可插拔健康检查接口（Database 等）

# 主要能力

  - 响应辅助函数：WriteJSON / WriteError / WriteAPIError
  - 请求验证：DecodeJSONBody、必填字段校验（422）
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现

成功响应直接序列化记录本身，与错误响应的结构化包装区分开。
*/
package handlers
