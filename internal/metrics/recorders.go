package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// =============================================================================
// 🌐 HTTP
// =============================================================================

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
}

func newHTTPMetrics(f factory) httpMetrics {
	return httpMetrics{
		requests: f.counter("http", "requests_total", "Total number of HTTP requests", "method", "path", "status"),
		duration: f.histogram("http", "request_duration_seconds", "HTTP request duration in seconds",
			prometheus.DefBuckets, "method", "path"),
		size: f.histogram("http", "response_size_bytes", "HTTP response size in bytes",
			prometheus.ExponentialBuckets(100, 10, 6), "method", "path"),
	}
}

// RecordHTTPRequest 记录 HTTP 请求，path 应为归一化后的路由
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.http.requests.WithLabelValues(method, path, statusClass(status)).Inc()
	c.http.duration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.http.size.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 📞 通话
// =============================================================================

type callMetrics struct {
	active       *prometheus.GaugeVec
	ended        *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	turns        *prometheus.CounterVec
	turnLatency  *prometheus.HistogramVec
	speechBytes  *prometheus.HistogramVec
	idleTriggers *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	ackTimeouts  *prometheus.CounterVec
}

func newCallMetrics(f factory) callMetrics {
	return callMetrics{
		active: f.gauge("call", "sessions_active", "Number of media stream sessions currently registered"),
		ended:  f.counter("call", "sessions_total", "Total number of finished calls by end reason", "reason"),
		duration: f.histogram("call", "duration_seconds", "Call duration from stream start to session end",
			[]float64{5, 15, 30, 60, 120, 300, 600, 1200}),
		turns: f.counter("call", "turns_total", "Total number of caller turns by result", "result"),
		turnLatency: f.histogram("call", "turn_latency_seconds", "Latency between pause detection and reply audio being sent",
			[]float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 20}, "result"),
		speechBytes: f.histogram("call", "turn_speech_bytes", "Size of buffered caller speech handed to the pipeline",
			prometheus.ExponentialBuckets(1000, 2, 10)),
		idleTriggers: f.counter("vad", "idle_triggers_total", "Total number of end-of-utterance pauses detected"),
		dropped:      f.counter("call", "frames_dropped_total", "Total number of inbound media frames dropped by reason", "reason"),
		ackTimeouts:  f.counter("call", "ack_timeouts_total", "Total number of playback marks that were never acknowledged", "tag"),
	}
}

// CallStarted 记录一个会话完成注册
func (c *Collector) CallStarted() {
	c.call.active.WithLabelValues().Inc()
}

// CallEnded 记录会话结束及其原因
func (c *Collector) CallEnded(reason string, duration time.Duration) {
	c.call.active.WithLabelValues().Dec()
	c.call.ended.WithLabelValues(reason).Inc()
	c.call.duration.WithLabelValues().Observe(duration.Seconds())
}

// TurnCompleted 记录一次轮次处理结果（replied / discarded / failed / short）
func (c *Collector) TurnCompleted(result string, latency time.Duration, speechBytes int) {
	c.call.turns.WithLabelValues(result).Inc()
	c.call.turnLatency.WithLabelValues(result).Observe(latency.Seconds())
	if speechBytes > 0 {
		c.call.speechBytes.WithLabelValues().Observe(float64(speechBytes))
	}
}

// IdleTriggered 记录 VAD 检测到一次停顿
func (c *Collector) IdleTriggered() {
	c.call.idleTriggers.WithLabelValues().Inc()
}

// FrameDropped 记录被丢弃的入站帧
func (c *Collector) FrameDropped(reason string) {
	c.call.dropped.WithLabelValues(reason).Inc()
}

// AckTimedOut 记录播放确认超时
func (c *Collector) AckTimedOut(tag string) {
	c.call.ackTimeouts.WithLabelValues(tag).Inc()
}

// =============================================================================
// 🔌 上游、缓存与数据库
// =============================================================================

type upstreamMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newUpstreamMetrics(f factory) upstreamMetrics {
	return upstreamMetrics{
		requests: f.counter("upstream", "requests_total", "Total number of upstream speech and model requests",
			"provider", "operation", "status"),
		duration: f.histogram("upstream", "request_duration_seconds", "Upstream request duration in seconds",
			[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30}, "provider", "operation"),
	}
}

// RecordUpstreamRequest 记录语音或模型后端请求
func (c *Collector) RecordUpstreamRequest(provider, operation, status string, duration time.Duration) {
	c.upstream.requests.WithLabelValues(provider, operation, status).Inc()
	c.upstream.duration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

type cacheMetrics struct {
	lookups *prometheus.CounterVec
}

func newCacheMetrics(f factory) cacheMetrics {
	return cacheMetrics{
		lookups: f.counter("cache", "lookups_total", "Total number of cache lookups by result", "cache_type", "result"),
	}
}

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cache.lookups.WithLabelValues(cacheType, "hit").Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cache.lookups.WithLabelValues(cacheType, "miss").Inc()
}

type dbMetrics struct {
	conns    *prometheus.GaugeVec
	duration *prometheus.HistogramVec
}

func newDBMetrics(f factory) dbMetrics {
	return dbMetrics{
		conns: f.gauge("db", "connections", "Number of database connections by state", "database", "state"),
		duration: f.histogram("db", "query_duration_seconds", "Database query duration in seconds",
			prometheus.DefBuckets, "database", "operation"),
	}
}

// RecordDBConnections 记录连接池中打开与空闲的连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.db.conns.WithLabelValues(database, "open").Set(float64(open))
	c.db.conns.WithLabelValues(database, "idle").Set(float64(idle))
}

// RecordDBQuery 记录数据库操作耗时
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.db.duration.WithLabelValues(database, operation).Observe(duration.Seconds())
}
