// =============================================================================
// 🚦 loadgen 命令
// =============================================================================
// 对运行中的服务执行加权随机 CRUD 负载测试
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/dataflow/internal/loadgen"
)

// runLoadGen 执行负载测试
func runLoadGen(args []string) {
	fs := flag.NewFlagSet("loadgen", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	target := fs.String("target", "", "Target base URL (overrides config)")
	concurrency := fs.Int("concurrency", 0, "Concurrent workers (overrides config)")
	requests := fs.Int("requests", 0, "Operations per worker (overrides config)")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	// 命令行参数优先于配置文件
	lgCfg := cfg.LoadGen
	if *target != "" {
		lgCfg.TargetURL = *target
	}
	if *concurrency > 0 {
		lgCfg.Concurrency = *concurrency
	}
	if *requests > 0 {
		lgCfg.RequestsPerWorker = *requests
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	// Ctrl+C 时优雅停止
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting load test",
		zap.String("target", lgCfg.TargetURL),
		zap.Int("concurrency", lgCfg.Concurrency),
		zap.Int("requests_per_worker", lgCfg.RequestsPerWorker),
	)

	driver := loadgen.NewDriver(lgCfg, logger)
	result, err := driver.Run(ctx)

	// 先输出已完成的统计，再处理错误
	fmt.Println("Load test finished.")
	fmt.Printf("  Total operations: %d\n", result.Total)
	fmt.Printf("  Errors:           %d\n", result.Errors)
	fmt.Printf("  Duration:         %s\n", result.Duration)
	if result.Duration > 0 {
		fmt.Printf("  Throughput:       %.1f ops/sec\n", float64(result.Total)/result.Duration.Seconds())
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Load test aborted: %v\n", err)
		os.Exit(1)
	}
}
