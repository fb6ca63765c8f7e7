// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/fanfootprint/internal/model"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッションストア、バックエンドクライアント、ワーカーから利用する。
type MetricsCollector interface {
	RecordStoreOperation(op string, err error, duration time.Duration)
	RecordBackendRequest(op string, status int, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	SetActiveSessions(count int)
	RecordCleanup(kind string, removed int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	storeOps        *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	cleanupRemoved  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanfootprint_store_operations_total",
			Help: "セッションストア操作の合計数（結果別）",
		}, []string{"op", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fanfootprint_store_operation_duration_seconds",
			Help:    "セッションストア操作の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanfootprint_backend_requests_total",
			Help: "バックエンドAPI呼び出しの合計数（ステータス別）",
		}, []string{"op", "status_code"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fanfootprint_backend_request_duration_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanfootprint_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fanfootprint_active_sessions",
			Help: "メモリ上に保持しているセッションストアの数",
		}),
		cleanupRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanfootprint_cleanup_removed_total",
			Help: "クリーンアップジョブが削除した件数（種類別）",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.storeOps,
		c.storeLatency,
		c.backendRequests,
		c.backendLatency,
		c.httpStatus,
		c.activeSessions,
		c.cleanupRemoved,
	)

	return c
}

// RecordStoreOperation はセッションストア操作の結果と所要時間を記録する。
// resultはsuccess、StoreErrorの種別、またはerrorのいずれか。
func (c *Collector) RecordStoreOperation(op string, err error, duration time.Duration) {
	c.storeOps.WithLabelValues(op, resultLabel(err)).Inc()
	c.storeLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordBackendRequest はバックエンドAPI呼び出しを記録する。通信エラーはstatus_code=0となる。
func (c *Collector) RecordBackendRequest(op string, status int, duration time.Duration) {
	c.backendRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	c.backendLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetActiveSessions は保持中のセッションストア数を設定する。
func (c *Collector) SetActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}

// RecordCleanup はクリーンアップで削除した件数を記録する。
func (c *Collector) RecordCleanup(kind string, removed int64) {
	c.cleanupRemoved.WithLabelValues(kind).Add(float64(removed))
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	var storeErr *model.StoreError
	if errors.As(err, &storeErr) {
		return string(storeErr.Kind)
	}
	return "error"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
