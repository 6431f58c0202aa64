package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TradesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexer_trades_processed_total",
		Help: "Trade events fully applied to the aggregation state.",
	})

	TradesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_trades_skipped_total",
		Help: "Trade events dropped before aggregation, by reason.",
	}, []string{"reason"})

	WindowEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexer_window_evictions_total",
		Help: "Entries expired out of the rolling windows.",
	})

	CandleWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_candle_writes_total",
		Help: "Candle upserts, by period.",
	}, []string{"period"})

	BroadcastErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexer_broadcast_errors_total",
		Help: "Failed stats-patch publishes.",
	})

	ProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indexer_trade_process_seconds",
		Help:    "End-to-end latency of a single trade event.",
		Buckets: prometheus.DefBuckets,
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
