package monitoring

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"prendaml/predict"
)

// PredictionEvent 一次预测请求的记录
type PredictionEvent struct {
	ID        string          `json:"id"`
	Variant   string          `json:"variant"`
	Route     string          `json:"route"`
	Timestamp time.Time       `json:"timestamp"`
	LatencyMS float64         `json:"latency_ms"`
	Result    *predict.Result `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// RecentPredictions 按请求ID保存最近的预测，容量满时淘汰最旧的
type RecentPredictions struct {
	cache *lru.Cache[string, PredictionEvent]
}

// NewRecentPredictions 创建容量为 size 的记录
func NewRecentPredictions(size int) (*RecentPredictions, error) {
	cache, err := lru.New[string, PredictionEvent](size)
	if err != nil {
		return nil, err
	}
	return &RecentPredictions{cache: cache}, nil
}

// Add 保存事件
func (r *RecentPredictions) Add(event PredictionEvent) {
	r.cache.Add(event.ID, event)
}

// Get 按请求ID查找，不改变淘汰顺序
func (r *RecentPredictions) Get(id string) (PredictionEvent, bool) {
	return r.cache.Peek(id)
}

// Latest 返回最近的 n 条，最新的在前
func (r *RecentPredictions) Latest(n int) []PredictionEvent {
	keys := r.cache.Keys()
	if n <= 0 || n > len(keys) {
		n = len(keys)
	}

	events := make([]PredictionEvent, 0, n)
	for i := len(keys) - 1; i >= 0 && len(events) < n; i-- {
		if event, ok := r.cache.Peek(keys[i]); ok {
			events = append(events, event)
		}
	}
	return events
}

func (r *RecentPredictions) Len() int {
	return r.cache.Len()
}
