package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/dataflow/config"
	"github.com/BaSui01/dataflow/internal/store"
)

// =============================================================================
// 🚦 加权随机负载生成器
// =============================================================================

// Operation 表示一种 CRUD 操作
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// opWeight 操作及其相对权重
type opWeight struct {
	op     Operation
	weight int
}

// Result captures execution summary.
type Result struct {
	Total    int64
	Errors   int64
	Duration time.Duration
}

// Driver 按配置的权重并发执行 CRUD 操作
type Driver struct {
	cfg    config.LoadGenConfig
	client *http.Client
	logger *zap.Logger

	total  int64
	errors int64
}

// NewDriver 创建负载生成器
func NewDriver(cfg config.LoadGenConfig, logger *zap.Logger) *Driver {
	return &Driver{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With(zap.String("component", "loadgen")),
	}
}

// weights 返回配置的操作权重表
func (d *Driver) weights() []opWeight {
	return []opWeight{
		{OpCreate, d.cfg.CreateWeight},
		{OpRead, d.cfg.ReadWeight},
		{OpUpdate, d.cfg.UpdateWeight},
		{OpDelete, d.cfg.DeleteWeight},
	}
}

// pickOperation 按权重随机选取一个操作。
// 权重全部非正时回退到读操作。
func pickOperation(weights []opWeight, r *rand.Rand) Operation {
	total := 0
	for _, w := range weights {
		if w.weight > 0 {
			total += w.weight
		}
	}
	if total <= 0 {
		return OpRead
	}

	n := r.Intn(total)
	for _, w := range weights {
		if w.weight <= 0 {
			continue
		}
		if n < w.weight {
			return w.op
		}
		n -= w.weight
	}
	return OpRead
}

// =============================================================================
// 🎯 执行
// =============================================================================

// Run 启动所有 worker 并等待完成。
// 单个操作失败只计数并记录日志，不会终止整个负载测试；
// 只有 ctx 取消会提前结束。
func (d *Driver) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	start := time.Now()

	d.logger.Info("load test starting",
		zap.String("run_id", runID),
		zap.String("target", d.cfg.TargetURL),
		zap.Int("concurrency", d.cfg.Concurrency),
		zap.Int("requests_per_worker", d.cfg.RequestsPerWorker),
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Concurrency; i++ {
		worker := i
		g.Go(func() error {
			return d.runWorker(ctx, fmt.Sprintf("client%d", worker))
		})
	}

	err := g.Wait()

	result := Result{
		Total:    atomic.LoadInt64(&d.total),
		Errors:   atomic.LoadInt64(&d.errors),
		Duration: time.Since(start),
	}

	d.logger.Info("load test completed",
		zap.String("run_id", runID),
		zap.Int64("total", result.Total),
		zap.Int64("errors", result.Errors),
		zap.Duration("duration", result.Duration),
	)

	return result, err
}

// runWorker 顺序执行单个 worker 的全部操作
func (d *Driver) runWorker(ctx context.Context, name string) error {
	// 每个 worker 独立的随机源，避免全局锁竞争
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(hashString(name))))
	weights := d.weights()

	for i := 0; i < d.cfg.RequestsPerWorker; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		op := pickOperation(weights, rng)
		atomic.AddInt64(&d.total, 1)

		if err := d.execute(ctx, name, i, op, rng); err != nil {
			atomic.AddInt64(&d.errors, 1)
			d.logger.Warn("operation failed",
				zap.String("worker", name),
				zap.String("op", string(op)),
				zap.Error(err),
			)
		}

		// 定期抓取指标端点
		if d.cfg.MetricsEvery > 0 && i%d.cfg.MetricsEvery == 0 {
			if err := d.scrapeMetrics(ctx); err != nil {
				d.logger.Debug("metrics scrape failed", zap.Error(err))
			}
		}

		// 随机间隔，错开请求
		d.sleep(ctx, rng)
	}

	d.logger.Debug("worker done", zap.String("worker", name))
	return nil
}

// execute 执行一次加权选出的操作
func (d *Driver) execute(ctx context.Context, worker string, seq int, op Operation, rng *rand.Rand) error {
	switch op {
	case OpCreate:
		return d.doCreate(ctx, worker, seq)
	case OpRead:
		_, err := d.doList(ctx)
		return err
	case OpUpdate:
		return d.doUpdate(ctx, rng)
	case OpDelete:
		return d.doDelete(ctx, rng)
	default:
		return fmt.Errorf("unknown operation: %s", op)
	}
}

// =============================================================================
// 🔧 CRUD 请求
// =============================================================================

func (d *Driver) doCreate(ctx context.Context, worker string, seq int) error {
	payload := map[string]string{
		"name":    fmt.Sprintf("user_%s_%d", worker, seq),
		"email":   fmt.Sprintf("%s_%d@example.com", worker, seq),
		"message": "load test",
	}

	resp, err := d.postJSON(ctx, "/data", payload)
	if err != nil {
		return err
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("create returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Driver) doList(ctx context.Context) ([]store.UserData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.TargetURL+"/data", nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drain(resp)
		return nil, fmt.Errorf("list returned status %d", resp.StatusCode)
	}

	var items []store.UserData
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return items, nil
}

func (d *Driver) doUpdate(ctx context.Context, rng *rand.Rand) error {
	items, err := d.doList(ctx)
	if err != nil {
		return err
	}
	// 没有记录时跳过更新
	if len(items) == 0 {
		return nil
	}

	item := items[rng.Intn(len(items))]
	payload := map[string]string{
		"name":    item.Name + "_upd",
		"email":   item.Email,
		"message": "updated",
	}

	req, err := newJSONRequest(ctx, http.MethodPut, fmt.Sprintf("%s/data/%d", d.cfg.TargetURL, item.ID), payload)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp)

	// 并发删除导致的 404 不算失败
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("update returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Driver) doDelete(ctx context.Context, rng *rand.Rand) error {
	items, err := d.doList(ctx)
	if err != nil {
		return err
	}
	// 没有记录时跳过删除
	if len(items) == 0 {
		return nil
	}

	item := items[rng.Intn(len(items))]

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/data/%d", d.cfg.TargetURL, item.ID), nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp)

	// 并发删除导致的 404 不算失败
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Driver) scrapeMetrics(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.TargetURL+"/metrics", nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metrics returned status %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// 🔩 辅助函数
// =============================================================================

func (d *Driver) postJSON(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	req, err := newJSONRequest(ctx, http.MethodPost, d.cfg.TargetURL+path, payload)
	if err != nil {
		return nil, err
	}
	return d.client.Do(req)
}

func newJSONRequest(ctx context.Context, method, url string, payload interface{}) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// sleep 在两次操作间随机暂停 [DelayMin, DelayMax)
func (d *Driver) sleep(ctx context.Context, rng *rand.Rand) {
	delta := d.cfg.DelayMax - d.cfg.DelayMin
	delay := d.cfg.DelayMin
	if delta > 0 {
		delay += time.Duration(rng.Int63n(int64(delta)))
	}
	if delay <= 0 {
		return
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func drainAndClose(resp *http.Response) {
	drain(resp)
	resp.Body.Close()
}

// drain 读尽响应体以便连接复用
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
}

func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
