package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"prendaml/predict"
)

func TestMetricsCountersAccumulate(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordPrediction("prendas", 2*time.Millisecond)
	mc.RecordPrediction("prendas", 20*time.Millisecond)
	mc.RecordPrediction("cluster", time.Millisecond)
	mc.RecordError("prendas", "missing_field")

	if got := mc.Value(MetricPredictions, map[string]string{"variant": "prendas"}); got != 2 {
		t.Fatalf("expected 2 predictions, got %v", got)
	}
	if got := mc.Value(MetricPredictionErrors, map[string]string{"kind": "missing_field", "variant": "prendas"}); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}

	series, err := mc.GetMetric(MetricLatency)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected one latency series per variant, got %d", len(series))
	}
	if _, err := mc.GetMetric("missing"); err == nil {
		t.Fatal("expected error for unknown metric")
	}
}

func TestExportPrometheus(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordPrediction("precio", 3*time.Millisecond)
	mc.RecordReload(true, 4)

	out := mc.ExportPrometheus()
	for _, want := range []string{
		"# TYPE prendaml_predictions_total counter",
		`prendaml_predictions_total{variant="precio"} 1`,
		`prendaml_prediction_latency_seconds_bucket{le="+Inf",variant="precio"} 1`,
		`prendaml_prediction_latency_seconds_bucket{le="0.001",variant="precio"} 0`,
		`prendaml_prediction_latency_seconds_bucket{le="0.005",variant="precio"} 1`,
		`prendaml_prediction_latency_seconds_count{variant="precio"} 1`,
		"prendaml_variants_loaded 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestExportJSON(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordReload(false, 0)

	out, err := mc.ExportJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded struct {
		Metrics []Metric `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded.Metrics) != 1 || decoded.Metrics[0].Labels["result"] != "failed" {
		t.Fatalf("unexpected metrics: %+v", decoded.Metrics)
	}
}

func TestRecentPredictionsEvictsOldest(t *testing.T) {
	recent, err := NewRecentPredictions(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i <= 3; i++ {
		recent.Add(PredictionEvent{ID: fmt.Sprintf("req-%d", i), Variant: "prendas"})
	}

	if _, ok := recent.Get("req-1"); ok {
		t.Fatal("oldest entry should be evicted")
	}
	latest := recent.Latest(0)
	if len(latest) != 2 || latest[0].ID != "req-3" || latest[1].ID != "req-2" {
		t.Fatalf("unexpected order: %+v", latest)
	}
	if recent.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", recent.Len())
	}
	if _, err := NewRecentPredictions(0); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestRecentPredictionsLookupKeepsOrder(t *testing.T) {
	recent, err := NewRecentPredictions(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		recent.Add(PredictionEvent{ID: id, Variant: "prendas"})
	}

	if _, ok := recent.Get("a"); !ok {
		t.Fatal("expected entry a")
	}
	latest := recent.Latest(3)
	if len(latest) != 3 || latest[0].ID != "c" || latest[1].ID != "b" || latest[2].ID != "a" {
		t.Fatalf("unexpected order after lookup: %+v", latest)
	}

	// 查找过的条目仍然最先被淘汰
	recent.Add(PredictionEvent{ID: "d", Variant: "prendas"})
	if _, ok := recent.Get("a"); ok {
		t.Fatal("entry a should be evicted")
	}
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, hub *WebSocketHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversSubscribedPredictions(t *testing.T) {
	hub := NewWebSocketHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn := dial(t, server, "?variant=cluster")
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.PublishPrediction(PredictionEvent{ID: "skip", Variant: "prendas"})
	hub.PublishPrediction(PredictionEvent{
		ID:      "keep",
		Variant: "cluster",
		Result:  &predict.Result{Variant: "cluster", Output: predict.OutputCluster, Cluster: 2},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != PredictionMessage {
		t.Fatalf("unexpected message type %s", msg.Type)
	}
	var event PredictionEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != "keep" || event.Result.Cluster != 2 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestHubBroadcastsReloadToAll(t *testing.T) {
	hub := NewWebSocketHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn := dial(t, server, "?variant=precio")
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.PublishReload(ReloadEvent{Source: "dir:models", Variants: []string{"precio"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(data), `"type":"reload"`) {
		t.Fatalf("unexpected message: %s", data)
	}

	cancel()
	select {
	case <-hub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if hub.ClientCount() != 0 {
		t.Fatal("clients must be dropped on shutdown")
	}
}
