// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector は同期・ダウンロード処理のPrometheusメトリクスを収集する。
type Collector struct {
	fetchFail     prometheus.Counter
	entriesSeen   prometheus.Counter
	inserted      prometheus.Counter
	downloadOK    prometheus.Counter
	downloadFail  prometheus.Counter
	cycleDuration prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermonsync_fetch_fail_total",
			Help: "フィードフェッチ失敗の合計数",
		}),
		entriesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermonsync_entries_seen_total",
			Help: "フィードから取得したエントリの合計数",
		}),
		inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermonsync_sermons_inserted_total",
			Help: "新規登録された説教の合計数",
		}),
		downloadOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermonsync_download_success_total",
			Help: "音声ダウンロード成功の合計数",
		}),
		downloadFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermonsync_download_fail_total",
			Help: "音声ダウンロード失敗の合計数",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sermonsync_cycle_duration_seconds",
			Help:    "同期サイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.fetchFail,
		c.entriesSeen,
		c.inserted,
		c.downloadOK,
		c.downloadFail,
		c.cycleDuration,
	)

	return c
}

// RecordFetchFailure はフィードフェッチ失敗を記録する。
func (c *Collector) RecordFetchFailure() {
	c.fetchFail.Inc()
}

// RecordEntriesSeen はフィードから取得したエントリ数を記録する。
func (c *Collector) RecordEntriesSeen(count int) {
	c.entriesSeen.Add(float64(count))
}

// RecordSermonInserted は説教の新規登録を記録する。
func (c *Collector) RecordSermonInserted() {
	c.inserted.Inc()
}

// RecordDownloadSuccess は音声ダウンロード成功を記録する。
func (c *Collector) RecordDownloadSuccess() {
	c.downloadOK.Inc()
}

// RecordDownloadFailure は音声ダウンロード失敗を記録する。
func (c *Collector) RecordDownloadFailure() {
	c.downloadFail.Inc()
}

// RecordCycleDuration は同期サイクルの所要時間を記録する。
func (c *Collector) RecordCycleDuration(duration time.Duration) {
	c.cycleDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
