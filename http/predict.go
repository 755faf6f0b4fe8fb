package http

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"prendaml/monitoring"
	"prendaml/predict"
)

const maxMultipartMemory = 1 << 20

// PriceResponse 价格预测的响应体
type PriceResponse struct {
	PrecioEstimado  float64 `json:"precio_estimado"`
	TipoTransaccion string  `json:"tipo_transaccion,omitempty"`
}

// ClusterResponse 聚类预测的响应体
type ClusterResponse struct {
	ClusterAsignado int            `json:"cluster_asignado"`
	PCA             PCACoordinates `json:"pca"`
}

type PCACoordinates struct {
	PC1 float64 `json:"PC1"`
	PC2 float64 `json:"PC2"`
}

// FormatResult 把预测结果转换为对外的响应体
func FormatResult(result *predict.Result) interface{} {
	if result.Output == predict.OutputCluster {
		resp := ClusterResponse{ClusterAsignado: result.Cluster}
		if len(result.Projection) >= 2 {
			resp.PCA = PCACoordinates{PC1: result.Projection[0], PC2: result.Projection[1]}
		}
		return resp
	}
	return PriceResponse{
		PrecioEstimado:  result.Price,
		TipoTransaccion: result.Transaction,
	}
}

// errorKind 把错误归入指标标签
func errorKind(err error) string {
	switch {
	case errors.Is(err, predict.ErrMissingField):
		return "missing_field"
	case errors.Is(err, predict.ErrInvalidEnumValue):
		return "invalid_enum_value"
	case errors.Is(err, predict.ErrSchemaMismatch):
		return "schema_mismatch"
	default:
		return "prediction"
	}
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := GetRequestID(r.Context())

	snap := a.registry.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "modelos no cargados")
		return
	}
	v, ok := snap.ByRoute(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("ruta desconocida: %s", r.URL.Path))
		return
	}

	rec, err := DecodeRecord(r, v.Body())
	if err != nil {
		a.fail(w, v, requestID, start, "decode", err)
		return
	}
	a.logger.Debug("datos recibidos",
		zap.String("request_id", requestID),
		zap.String("variant", v.Name()),
		zap.Any("record", rec),
	)

	result, err := v.Predict(rec)
	if err != nil {
		a.fail(w, v, requestID, start, errorKind(err), err)
		return
	}

	latency := time.Since(start)
	a.metrics.RecordPrediction(v.Name(), latency)
	a.track(monitoring.PredictionEvent{
		ID:        requestID,
		Variant:   v.Name(),
		Route:     v.Route(),
		Timestamp: start,
		LatencyMS: float64(latency.Microseconds()) / 1000,
		Result:    result,
	})

	writeJSON(w, http.StatusOK, FormatResult(result))
}

func (a *API) fail(w http.ResponseWriter, v *predict.Variant, requestID string, start time.Time, kind string, err error) {
	a.metrics.RecordError(v.Name(), kind)
	a.logger.Info("prediction rejected",
		zap.String("request_id", requestID),
		zap.String("variant", v.Name()),
		zap.String("kind", kind),
		zap.Error(err),
	)
	a.track(monitoring.PredictionEvent{
		ID:        requestID,
		Variant:   v.Name(),
		Route:     v.Route(),
		Timestamp: start,
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
		Error:     err.Error(),
	})

	writeError(w, http.StatusBadRequest, err.Error())
}

func (a *API) track(event monitoring.PredictionEvent) {
	if event.ID != "" {
		a.recent.Add(event)
	}
	if a.hub != nil {
		if err := a.hub.PublishPrediction(event); err != nil {
			a.logger.Warn("publish prediction", zap.Error(err))
		}
	}
}

// DecodeRecord 按 Content-Type 解析请求体；没有 Content-Type 时使用变体声明的格式
func DecodeRecord(r *http.Request, fallback string) (predict.Record, error) {
	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		var err error
		if mediaType, _, err = mime.ParseMediaType(ct); err != nil {
			return nil, fmt.Errorf("Content-Type inválido: %s", ct)
		}
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return decodeJSON(r.Body)
	case mediaType == "application/x-www-form-urlencoded":
		return decodeURLEncoded(r.Body)
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("formulario inválido: %v", err)
		}
		return formRecord(r.MultipartForm.Value), nil
	case mediaType == "":
		if fallback == predict.BodyForm {
			return decodeURLEncoded(r.Body)
		}
		return decodeJSON(r.Body)
	default:
		return nil, fmt.Errorf("tipo de contenido no soportado: %s", mediaType)
	}
}

func decodeJSON(body io.Reader) (predict.Record, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var rec predict.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("JSON inválido: %v", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("JSON inválido: se esperaba un objeto")
	}
	return rec, nil
}

func decodeURLEncoded(body io.Reader) (predict.Record, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("formulario inválido: %v", err)
	}
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, fmt.Errorf("formulario inválido: %v", err)
	}
	return formRecord(values), nil
}

// formRecord 单值字段为字符串，重复字段保留为列表
func formRecord(values map[string][]string) predict.Record {
	rec := make(predict.Record, len(values))
	for key, vals := range values {
		switch len(vals) {
		case 0:
		case 1:
			rec[key] = vals[0]
		default:
			rec[key] = append([]string(nil), vals...)
		}
	}
	return rec
}
