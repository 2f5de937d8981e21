// =============================================================================
// 📦 DataFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		Metrics:   DefaultMetricsConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		LoadGen:   DefaultLoadGenConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    0, // 默认关闭限流
		RateLimitBurst:  0,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "dataflow",
		Password:        "",
		Name:            "dataflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	// 裸指标名与抓取方配置保持兼容（http_requests_total 等）
	return MetricsConfig{Namespace: ""}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "dataflow",
		SampleRate:   0.1,
	}
}

// DefaultLoadGenConfig 返回默认负载生成器配置
func DefaultLoadGenConfig() LoadGenConfig {
	return LoadGenConfig{
		TargetURL:         "http://localhost:8080",
		Concurrency:       10,
		RequestsPerWorker: 100,
		CreateWeight:      2,
		ReadWeight:        5,
		UpdateWeight:      2,
		DeleteWeight:      1,
		MetricsEvery:      10,
		DelayMin:          10 * time.Millisecond,
		DelayMax:          200 * time.Millisecond,
		Timeout:           10 * time.Second,
	}
}
