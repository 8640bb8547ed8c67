// Package metrics provides Prometheus metrics for the simulator
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal 各标的已执行的 tick 数
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_ticks_total",
		Help: "Simulation ticks executed per symbol",
	}, []string{"symbol"})

	// FillsTotal 各标的撮合成交笔数
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_fills_total",
		Help: "Fills produced by the matching engine per symbol",
	}, []string{"symbol"})

	// RejectedOrdersTotal 被撮合引擎拒绝的订单数
	RejectedOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_rejected_orders_total",
		Help: "Orders rejected by validation or risk per symbol",
	}, []string{"symbol"})

	// ReferencePrice 当前参考价
	ReferencePrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "prism_reference_price",
		Help: "Current price process reference price per symbol",
	}, []string{"symbol"})

	// BookSpread 当前盘口价差
	BookSpread = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "prism_book_spread",
		Help: "Current best bid/ask spread per symbol",
	}, []string{"symbol"})

	// SinkQueueDepth 持久化队列深度
	SinkQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "prism_sink_queue_depth",
		Help: "Records buffered in a persistence sink",
	}, []string{"sink"})

	// SinkDroppedTotal 分析链路因溢出丢弃的快照数
	SinkDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_sink_dropped_total",
		Help: "Snapshots dropped by the best-effort analytics sink",
	}, []string{"sink"})

	// SinkHealthy 1 表示近期写入正常
	SinkHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "prism_sink_healthy",
		Help: "Whether recent sink writes are landing (1 healthy, 0 not)",
	}, []string{"sink"})

	// FeedClients 当前 WebSocket 订阅数
	FeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prism_feed_clients",
		Help: "Connected feed subscribers",
	})

	// TickDuration tick 执行耗时
	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prism_tick_duration_seconds",
		Help:    "Wall time of one simulation tick",
		Buckets: prometheus.ExponentialBuckets(1e-5, 2, 14),
	}, []string{"symbol"})
)

// UpdateBookMetrics 在每个 tick 末尾刷新行情类指标
func UpdateBookMetrics(symbol string, refPrice, spread float64) {
	ReferencePrice.WithLabelValues(symbol).Set(refPrice)
	BookSpread.WithLabelValues(symbol).Set(spread)
}

// UpdateSinkMetrics 刷新某条持久化链路的队列与健康状态
func UpdateSinkMetrics(sink string, pending int, healthy bool) {
	SinkQueueDepth.WithLabelValues(sink).Set(float64(pending))
	v := 0.0
	if healthy {
		v = 1.0
	}
	SinkHealthy.WithLabelValues(sink).Set(v)
}

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
