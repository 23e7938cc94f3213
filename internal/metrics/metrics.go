// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIクライアント、メディエーター、ワーカーから利用する。
type MetricsCollector interface {
	RecordMediatorLoad(kind, loadType, result string)
	RecordAPIStatus(statusCode int)
	RecordAPILatency(duration time.Duration)
	RecordRowsMerged(count int)
	RecordMutation(action, result string)
	RecordCleanupDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	mediatorLoads  *prometheus.CounterVec
	apiStatus      *prometheus.CounterVec
	apiLatency     prometheus.Histogram
	rowsMerged     prometheus.Counter
	mutations      *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mediatorLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mastosync_mediator_loads_total",
			Help: "リモートメディエーターの読み込み回数（種別・方向・結果別）",
		}, []string{"kind", "load_type", "result"}),
		apiStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mastosync_api_status_total",
			Help: "MastodonAPIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mastosync_api_latency_seconds",
			Help:    "MastodonAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		rowsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mastosync_cache_rows_merged_total",
			Help: "キャッシュにマージされた行の合計数",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mastosync_mutations_total",
			Help: "楽観的更新の結果別の回数",
		}, []string{"action", "result"}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mastosync_cleanup_deleted_total",
			Help: "クリーンアップで削除されたキャッシュ行の合計数",
		}),
	}

	reg.MustRegister(
		c.mediatorLoads,
		c.apiStatus,
		c.apiLatency,
		c.rowsMerged,
		c.mutations,
		c.cleanupDeleted,
	)

	return c
}

// RecordMediatorLoad はメディエーターの読み込み結果を記録する。
func (c *Collector) RecordMediatorLoad(kind, loadType, result string) {
	c.mediatorLoads.WithLabelValues(kind, loadType, result).Inc()
}

// RecordAPIStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordAPIStatus(statusCode int) {
	c.apiStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAPILatency はAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordAPILatency(duration time.Duration) {
	c.apiLatency.Observe(duration.Seconds())
}

// RecordRowsMerged はマージされた行数を記録する。
func (c *Collector) RecordRowsMerged(count int) {
	c.rowsMerged.Add(float64(count))
}

// RecordMutation は楽観的更新の結果を記録する。
func (c *Collector) RecordMutation(action, result string) {
	c.mutations.WithLabelValues(action, result).Inc()
}

// RecordCleanupDeleted はクリーンアップで削除された行数を記録する。
func (c *Collector) RecordCleanupDeleted(count int64) {
	c.cleanupDeleted.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordMediatorLoad(string, string, string) {}
func (Nop) RecordAPIStatus(int)                       {}
func (Nop) RecordAPILatency(time.Duration)            {}
func (Nop) RecordRowsMerged(int)                      {}
func (Nop) RecordMutation(string, string)             {}
func (Nop) RecordCleanupDeleted(int64)                {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカープロセスのように chi ルーターを持たない場合に使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
