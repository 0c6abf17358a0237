package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 汇总 HTTP、通话、上游、缓存与数据库指标
type Collector struct {
	http     httpMetrics
	call     callMetrics
	upstream upstreamMetrics
	cache    cacheMetrics
	db       dbMetrics

	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// Option 配置 Collector
type Option func(*collectorOptions)

type collectorOptions struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	runtime    bool
}

// WithRegistry 将指标注册到独立的 Registry，同时附带 Go 运行时与进程指标
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *collectorOptions) {
		o.registerer = reg
		o.gatherer = reg
		o.runtime = true
	}
}

// NewCollector 创建指标收集器，默认注册到 prometheus.DefaultRegisterer
func NewCollector(namespace string, logger *zap.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := collectorOptions{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runtime {
		o.registerer.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		)
	}

	f := factory{with: promauto.With(o.registerer), namespace: namespace}
	c := &Collector{
		http:     newHTTPMetrics(f),
		call:     newCallMetrics(f),
		upstream: newUpstreamMetrics(f),
		cache:    newCacheMetrics(f),
		db:       newDBMetrics(f),
		gatherer: o.gatherer,
		logger:   logger.With(zap.String("component", "metrics")),
	}
	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	if c.gatherer == prometheus.DefaultGatherer {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// factory 以统一 namespace 创建指标
type factory struct {
	with      promauto.Factory
	namespace string
}

func (f factory) counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return f.with.NewCounterVec(prometheus.CounterOpts{
		Namespace: f.namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func (f factory) gauge(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return f.with.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: f.namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func (f factory) histogram(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return f.with.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: f.namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

// statusClass 将 HTTP 状态码归为 2xx/3xx/4xx/5xx
func statusClass(code int) string {
	if code < 200 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
