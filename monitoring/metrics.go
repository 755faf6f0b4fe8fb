package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// 预测服务的指标名
const (
	MetricPredictions      = "prendaml_predictions_total"
	MetricPredictionErrors = "prendaml_prediction_errors_total"
	MetricLatency          = "prendaml_prediction_latency_seconds"
	MetricReloads          = "prendaml_reloads_total"
	MetricVariantsLoaded   = "prendaml_variants_loaded"
	MetricGoroutines       = "system_goroutines"
	MetricHeapAlloc        = "memory_heap_alloc"
)

// DefaultLatencyBuckets 延迟直方图的桶（秒）
var DefaultLatencyBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1}

// Metric 指标
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`

	// 仅直方图使用
	Count   uint64    `json:"count,omitempty"`
	Buckets []float64 `json:"buckets,omitempty"`
	Counts  []uint64  `json:"bucket_counts,omitempty"`
}

// MetricsCollector 指标收集器
type MetricsCollector struct {
	series      map[string]*Metric
	metricsLock sync.RWMutex

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		series:    make(map[string]*Metric),
		startTime: time.Now(),
	}
}

// seriesKey 按名称和标签生成序列键
func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	return name + "{" + formatLabels(labels) + "}"
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s=%q`, k, labels[k]))
	}
	return strings.Join(parts, ",")
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// lookup 取得或创建序列，调用方必须持有写锁
func (mc *MetricsCollector) lookup(name string, typ MetricType, labels map[string]string, help string) *Metric {
	key := seriesKey(name, labels)
	metric, ok := mc.series[key]
	if !ok {
		metric = &Metric{Name: name, Type: typ, Labels: copyLabels(labels), Help: help}
		mc.series[key] = metric
	}
	metric.Timestamp = time.Now()
	return metric
}

// IncrCounter 增加计数器
func (mc *MetricsCollector) IncrCounter(name string, value float64, labels map[string]string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	mc.lookup(name, MetricTypeCounter, labels, "").Value += value
}

// SetGauge 设置仪表
func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	mc.lookup(name, MetricTypeGauge, labels, "").Value = value
}

// RecordHistogram 记录直方图，Value 保存累计和
func (mc *MetricsCollector) RecordHistogram(name string, value float64, labels map[string]string, buckets []float64) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	metric := mc.lookup(name, MetricTypeHistogram, labels, "")
	if metric.Buckets == nil {
		metric.Buckets = append([]float64(nil), buckets...)
		sort.Float64s(metric.Buckets)
		metric.Counts = make([]uint64, len(metric.Buckets))
	}
	metric.Value += value
	metric.Count++
	for i, le := range metric.Buckets {
		if value <= le {
			metric.Counts[i]++
		}
	}
}

// GetMetric 获取指标的所有序列
func (mc *MetricsCollector) GetMetric(name string) ([]*Metric, error) {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	var result []*Metric
	for _, m := range mc.series {
		if m.Name == name {
			result = append(result, m.copy())
		}
	}
	if len(result) == 0 {
		return nil, errors.Errorf("metric %s not found", name)
	}
	sortMetrics(result)
	return result, nil
}

// Value 返回单个序列的当前值
func (mc *MetricsCollector) Value(name string, labels map[string]string) float64 {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	if m, ok := mc.series[seriesKey(name, labels)]; ok {
		return m.Value
	}
	return 0
}

// GetAllMetrics 获取所有指标
func (mc *MetricsCollector) GetAllMetrics() []*Metric {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	result := make([]*Metric, 0, len(mc.series))
	for _, m := range mc.series {
		result = append(result, m.copy())
	}
	sortMetrics(result)
	return result
}

func (m *Metric) copy() *Metric {
	c := *m
	c.Labels = copyLabels(m.Labels)
	c.Buckets = append([]float64(nil), m.Buckets...)
	c.Counts = append([]uint64(nil), m.Counts...)
	return &c
}

func sortMetrics(metrics []*Metric) {
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Name != metrics[j].Name {
			return metrics[i].Name < metrics[j].Name
		}
		return seriesKey(metrics[i].Name, metrics[i].Labels) < seriesKey(metrics[j].Name, metrics[j].Labels)
	})
}

// RecordPrediction 记录一次成功预测
func (mc *MetricsCollector) RecordPrediction(variant string, latency time.Duration) {
	labels := map[string]string{"variant": variant}
	mc.IncrCounter(MetricPredictions, 1, labels)
	mc.RecordHistogram(MetricLatency, latency.Seconds(), labels, DefaultLatencyBuckets)
}

// RecordError 记录一次失败的预测请求
func (mc *MetricsCollector) RecordError(variant, kind string) {
	mc.IncrCounter(MetricPredictionErrors, 1, map[string]string{"variant": variant, "kind": kind})
}

// RecordReload 记录一次模型重载
func (mc *MetricsCollector) RecordReload(ok bool, variants int) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	mc.IncrCounter(MetricReloads, 1, map[string]string{"result": result})
	if ok {
		mc.SetGauge(MetricVariantsLoaded, float64(variants), nil)
	}
}

// Run 定期收集系统指标，直到 ctx 结束
func (mc *MetricsCollector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	mc.collectSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.collectSystemMetrics()
		}
	}
}

// collectSystemMetrics 收集系统指标
func (mc *MetricsCollector) collectSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mc.SetGauge(MetricHeapAlloc, float64(m.HeapAlloc), nil)
	mc.SetGauge(MetricGoroutines, float64(runtime.NumGoroutine()), nil)
}

var metricHelp = map[string]string{
	MetricPredictions:      "Predictions served per variant",
	MetricPredictionErrors: "Rejected prediction requests per variant and error kind",
	MetricLatency:          "Prediction latency in seconds",
	MetricReloads:          "Model bundle reloads by result",
	MetricVariantsLoaded:   "Variants in the active model snapshot",
	MetricGoroutines:       "Number of goroutines",
	MetricHeapAlloc:        "Memory heap allocated in bytes",
}

// ExportPrometheus 导出Prometheus文本格式
func (mc *MetricsCollector) ExportPrometheus() string {
	var b strings.Builder

	written := make(map[string]bool)
	for _, metric := range mc.GetAllMetrics() {
		name := metric.Name
		if !written[name] {
			help := metricHelp[name]
			if help == "" {
				help = fmt.Sprintf("Metric %s", name)
			}
			fmt.Fprintf(&b, "# HELP %s %s\n", name, help)
			fmt.Fprintf(&b, "# TYPE %s %s\n", name, metric.Type)
			written[name] = true
		}

		if metric.Type != MetricTypeHistogram {
			fmt.Fprintf(&b, "%s%s %g\n", name, braces(metric.Labels), metric.Value)
			continue
		}
		for i, le := range metric.Buckets {
			labels := copyLabels(metric.Labels)
			if labels == nil {
				labels = make(map[string]string)
			}
			labels["le"] = fmt.Sprintf("%g", le)
			fmt.Fprintf(&b, "%s_bucket%s %d\n", name, braces(labels), metric.Counts[i])
		}
		labels := copyLabels(metric.Labels)
		if labels == nil {
			labels = make(map[string]string)
		}
		labels["le"] = "+Inf"
		fmt.Fprintf(&b, "%s_bucket%s %d\n", name, braces(labels), metric.Count)
		fmt.Fprintf(&b, "%s_sum%s %g\n", name, braces(metric.Labels), metric.Value)
		fmt.Fprintf(&b, "%s_count%s %d\n", name, braces(metric.Labels), metric.Count)
	}

	return b.String()
}

func braces(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	return "{" + formatLabels(labels) + "}"
}

// ExportJSON 导出JSON格式
func (mc *MetricsCollector) ExportJSON() (string, error) {
	data, err := json.MarshalIndent(map[string]interface{}{
		"uptime":  mc.GetUptime().String(),
		"metrics": mc.GetAllMetrics(),
	}, "", "  ")
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats 获取系统统计
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime":     mc.GetUptime().String(),
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc":      m.Alloc,
			"heap_alloc": m.HeapAlloc,
			"heap_sys":   m.HeapSys,
			"gc_count":   m.NumGC,
		},
		"num_cpu": runtime.NumCPU(),
	}
}
