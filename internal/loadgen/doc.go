// 版权所有 2026 DataFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package loadgen 实现对 DataFlow HTTP API 的并发负载生成。
//
// Driver 启动固定数量的 worker，每个 worker 顺序执行配置数量的
// CRUD 操作，操作种类按相对权重随机选取（默认 create:2 read:5
// update:2 delete:1），并定期抓取 /metrics 端点。单个操作失败
// 只计数不终止。
package loadgen
