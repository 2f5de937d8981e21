// Copyright (c) DataFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 DataFlow 服务端程序入口。

# 概述

cmd/dataflow 是 DataFlow 服务的可执行入口，提供用户数据 CRUD API、
数据库迁移、负载测试、健康检查和版本查询等子命令。程序支持 YAML
配置文件加载、结构化日志（zap）以及 Prometheus 指标采集。

# 核心类型

  - Server           — 主服务器，管理 HTTP 端口、数据层及优雅关闭
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter    — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、loadgen（负载测试）、migrate（数据库迁移）、
    version、health
  - 中间件链：RequestID、SecurityHeaders、RequestLogger、MetricsMiddleware、
    Recovery、CORS、RateLimiter（基于 IP）、OTelTracing
  - 指标端点：/metrics 与业务端点同端口暴露（Prometheus），
    对 /metrics 的抓取同样被请求指标统计
  - 优雅关闭：信号监听 → 停止限流清理 → 关闭 HTTP → 关闭连接池 → 关闭遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
