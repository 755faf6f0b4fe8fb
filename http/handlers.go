package http

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"prendaml/monitoring"
	"prendaml/predict"
)

// API 持有处理器共享的依赖
type API struct {
	registry *predict.Registry
	metrics  *monitoring.MetricsCollector
	recent   *monitoring.RecentPredictions
	hub      *monitoring.WebSocketHub
	reload   func() error
	logger   *zap.Logger
}

// Deps 构造 API 所需的依赖，Hub 和 Reload 可以为空
type Deps struct {
	Registry *predict.Registry
	Metrics  *monitoring.MetricsCollector
	Recent   *monitoring.RecentPredictions
	Hub      *monitoring.WebSocketHub
	Reload   func() error
	Logger   *zap.Logger
}

// NewAPI 创建 API，未提供的监控组件使用默认值
func NewAPI(deps Deps) *API {
	api := &API{
		registry: deps.Registry,
		metrics:  deps.Metrics,
		recent:   deps.Recent,
		hub:      deps.Hub,
		reload:   deps.Reload,
		logger:   deps.Logger,
	}
	if api.registry == nil {
		api.registry = predict.NewRegistry()
	}
	if api.metrics == nil {
		api.metrics = monitoring.NewMetricsCollector()
	}
	if api.recent == nil {
		api.recent, _ = monitoring.NewRecentPredictions(256)
	}
	if api.logger == nil {
		api.logger = zap.NewNop()
	}
	return api
}

func RegisterHandlers(mux *http.ServeMux, api *API) {
	mux.HandleFunc("GET /api/health", api.handleHealth)
	mux.HandleFunc("GET /api/variants", api.handleVariants)
	mux.HandleFunc("GET /api/metrics", api.handleMetrics)
	mux.HandleFunc("GET /api/predictions", api.handleRecent)
	mux.HandleFunc("GET /api/predictions/{id}", api.handlePrediction)
	mux.HandleFunc("POST /api/reload", api.handleReload)
	if api.hub != nil {
		mux.HandleFunc("GET /api/ws/predictions", api.hub.HandleWebSocket)
	}

	// 预测路由来自模型清单，按路径在当前快照中查找
	mux.HandleFunc("POST /", api.handlePredict)
}

// writeJSON 先完成编码再写状态码，编码失败时返回 500
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleVariants(w http.ResponseWriter, r *http.Request) {
	snap := a.registry.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "modelos no cargados")
		return
	}

	variants := make([]predict.VariantConfig, 0, len(snap.Variants))
	for _, v := range snap.Variants {
		variants = append(variants, v.Config())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":    snap.Source,
		"loaded_at": snap.LoadedAt.Format(time.RFC3339),
		"variants":  variants,
	})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(a.metrics.ExportPrometheus()))
		return
	}

	data, err := a.metrics.ExportJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(data))
}

func (a *API) handleRecent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.recent.Latest(50))
}

func (a *API) handlePrediction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	event, ok := a.recent.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "predicción no encontrada: "+id)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	if a.reload == nil {
		writeError(w, http.StatusNotImplemented, "recarga no disponible")
		return
	}
	if err := a.reload(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	snap := a.registry.Snapshot()
	names := make([]string, 0, len(snap.Variants))
	for _, v := range snap.Variants {
		names = append(names, v.Name())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":   snap.Source,
		"variants": names,
	})
}
