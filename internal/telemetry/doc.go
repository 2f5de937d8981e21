// Package telemetry 封装 OpenTelemetry 链路追踪初始化逻辑，
// 为 DataFlow 提供集中式的 TracerProvider 配置与全局传播器注册。
// 指标导出由 internal/metrics 的 Prometheus registry 负责，
// 追踪功能禁用时使用 noop 实现，不连接任何外部服务。
package telemetry
