package loadgen

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/dataflow/config"
	"github.com/BaSui01/dataflow/internal/store"
	"github.com/BaSui01/dataflow/testutil"
)

// =============================================================================
// 🧪 测试用假服务端
// =============================================================================

// fakeAPI 内存实现 /data CRUD 与 /metrics，记录请求计数
type fakeAPI struct {
	mu      sync.Mutex
	nextID  uint
	items   map[uint]store.UserData
	scrapes int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextID: 1, items: make(map[uint]store.UserData)}
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodPost:
			var req store.UserData
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			req.ID = f.nextID
			f.nextID++
			f.items[req.ID] = req
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(req)
		case http.MethodGet:
			list := make([]store.UserData, 0, len(f.items))
			for _, item := range f.items {
				list = append(list, item)
			}
			json.NewEncoder(w).Encode(list)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/data/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		idStr := strings.TrimPrefix(r.URL.Path, "/data/")
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		item, ok := f.items[uint(id)]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodPut:
			var req store.UserData
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			item.Name, item.Email, item.Message = req.Name, req.Email, req.Message
			f.items[item.ID] = item
			json.NewEncoder(w).Encode(item)
		case http.MethodDelete:
			delete(f.items, item.ID)
			json.NewEncoder(w).Encode(item)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.scrapes, 1)
		w.Write([]byte("# HELP http_requests_total Total HTTP requests\n"))
	})

	return mux
}

func testConfig(targetURL string) config.LoadGenConfig {
	return config.LoadGenConfig{
		TargetURL:         targetURL,
		Concurrency:       3,
		RequestsPerWorker: 5,
		CreateWeight:      2,
		ReadWeight:        5,
		UpdateWeight:      2,
		DeleteWeight:      1,
		MetricsEvery:      2,
		DelayMin:          0,
		DelayMax:          time.Millisecond,
		Timeout:           5 * time.Second,
	}
}

// =============================================================================
// 🧪 Driver 测试
// =============================================================================

func TestDriver_Run(t *testing.T) {
	api := newFakeAPI()
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	d := NewDriver(testConfig(srv.URL), zap.NewNop())

	result, err := d.Run(testutil.TestContext(t))
	require.NoError(t, err)

	// 3 workers × 5 ops
	assert.Equal(t, int64(15), result.Total)
	assert.Zero(t, result.Errors)
	assert.Greater(t, result.Duration, time.Duration(0))

	// 每个 worker 在 i=0,2,4 时抓取指标
	assert.GreaterOrEqual(t, atomic.LoadInt64(&api.scrapes), int64(3))
}

func TestDriver_Run_FailingServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDriver(testConfig(srv.URL), zap.NewNop())

	// 服务端全部失败时照常完成，只累计错误
	result, err := d.Run(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, int64(15), result.Total)
	assert.Equal(t, int64(15), result.Errors)
}

func TestDriver_Run_Cancelled(t *testing.T) {
	api := newFakeAPI()
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RequestsPerWorker = 10000
	cfg.DelayMin = time.Millisecond
	cfg.DelayMax = 2 * time.Millisecond
	d := NewDriver(cfg, zap.NewNop())

	result, err := d.Run(testutil.TestContextWithTimeout(t, 50*time.Millisecond))
	assert.Error(t, err)
	assert.Less(t, result.Total, int64(3*10000))
}

func TestDriver_UpdateDeleteEmptyStore(t *testing.T) {
	api := newFakeAPI()
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.CreateWeight = 0
	cfg.ReadWeight = 0
	cfg.UpdateWeight = 1
	cfg.DeleteWeight = 1
	d := NewDriver(cfg, zap.NewNop())

	// 空库上的 update/delete 是 no-op，不算错误
	result, err := d.Run(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Zero(t, result.Errors)
}

// =============================================================================
// 🧪 加权选取属性测试
// =============================================================================

func TestPickOperation_Rapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		weights := []opWeight{
			{OpCreate, rapid.IntRange(0, 100).Draw(t, "create")},
			{OpRead, rapid.IntRange(0, 100).Draw(t, "read")},
			{OpUpdate, rapid.IntRange(0, 100).Draw(t, "update")},
			{OpDelete, rapid.IntRange(0, 100).Draw(t, "delete")},
		}

		rng := rand.New(rand.NewSource(rapid.Int64().Draw(t, "seed")))
		op := pickOperation(weights, rng)

		// 选出的操作权重必须为正，除非全部非正（回退到读）
		total := 0
		for _, w := range weights {
			if w.weight > 0 {
				total += w.weight
			}
		}
		if total == 0 {
			if op != OpRead {
				t.Fatalf("expected fallback to read, got %s", op)
			}
			return
		}
		for _, w := range weights {
			if w.op == op {
				if w.weight <= 0 {
					t.Fatalf("picked operation %s with non-positive weight", op)
				}
				return
			}
		}
		t.Fatalf("picked unknown operation %s", op)
	})
}

func TestPickOperation_Distribution(t *testing.T) {
	weights := []opWeight{
		{OpCreate, 2},
		{OpRead, 5},
		{OpUpdate, 2},
		{OpDelete, 1},
	}

	rng := rand.New(rand.NewSource(42))
	counts := make(map[Operation]int)
	const n = 100000
	for i := 0; i < n; i++ {
		counts[pickOperation(weights, rng)]++
	}

	// 读操作权重 5/10，观测频率应接近 0.5
	readRatio := float64(counts[OpRead]) / n
	assert.InDelta(t, 0.5, readRatio, 0.02)

	deleteRatio := float64(counts[OpDelete]) / n
	assert.InDelta(t, 0.1, deleteRatio, 0.02)
}

func TestPickOperation_ZeroWeightNeverPicked(t *testing.T) {
	weights := []opWeight{
		{OpCreate, 0},
		{OpRead, 1},
		{OpUpdate, 0},
		{OpDelete, 0},
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		assert.Equal(t, OpRead, pickOperation(weights, rng))
	}
}
