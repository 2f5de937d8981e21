// 版权所有 2026 DataFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package metrics implements the Prometheus instruments for DataFlow: a
// request counter and latency histogram labeled by (method, route, status),
// an in-flight request gauge, and database connection pool gauges. Each
// Collector owns a private registry so tests and multiple instances never
// collide on global registration.
package metrics
