package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tunnelman"

// Start outcomes
const (
	StartSucceeded      = "success"
	StartAlreadyRunning = "already_running"
	StartBinaryNotFound = "binary_not_found"
	StartSpawnFailed    = "spawn_error"
)

// Stop paths
const (
	StopGraceful = "graceful"
	StopForced   = "forced"
	StopExited   = "already_exited"
	StopFailed   = "failed"
)

// Collector is a prometheus.Collector that collects metrics about the
// tunnel supervisor. All methods are safe to call on a nil *Collector.
type Collector struct {
	runningTunnels prometheus.Gauge
	starts         *prometheus.CounterVec
	stops          *prometheus.CounterVec
	reaped         prometheus.Counter
	logLines       prometheus.Counter
	stopDuration   prometheus.Histogram
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		runningTunnels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "running_tunnels",
				Help:      "The number of tunnel client processes currently tracked.",
			},
		),
		starts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tunnel_starts_total",
				Help:      "The number of tunnel start attempts by outcome.",
			}, []string{"result"},
		),
		stops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tunnel_stops_total",
				Help:      "The number of tunnel stops by termination path.",
			}, []string{"path"},
		),
		reaped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tunnels_reaped_total",
				Help:      "The number of tunnels evicted after exiting without a stop request.",
			},
		),
		logLines: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "log_lines_total",
				Help:      "The number of output lines captured from tunnel clients.",
			},
		),
		stopDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "stop_duration_seconds",
				Help:      "The time taken for a tunnel client to exit after a stop request.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30},
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.runningTunnels.Describe(ch)
	c.starts.Describe(ch)
	c.stops.Describe(ch)
	c.reaped.Describe(ch)
	c.logLines.Describe(ch)
	c.stopDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.runningTunnels.Collect(ch)
	c.starts.Collect(ch)
	c.stops.Collect(ch)
	c.reaped.Collect(ch)
	c.logLines.Collect(ch)
	c.stopDuration.Collect(ch)
}

func (c *Collector) TunnelStarted(result string) {
	if c == nil {
		return
	}
	c.starts.WithLabelValues(result).Inc()
}

func (c *Collector) TunnelStopped(path string, took time.Duration) {
	if c == nil {
		return
	}
	c.stops.WithLabelValues(path).Inc()
	if path != StopFailed {
		c.stopDuration.Observe(took.Seconds())
	}
}

func (c *Collector) TunnelReaped() {
	if c == nil {
		return
	}
	c.reaped.Inc()
}

// SetRunningTunnels records the size of the record store after a change
func (c *Collector) SetRunningTunnels(n int) {
	if c == nil {
		return
	}
	c.runningTunnels.Set(float64(n))
}

func (c *Collector) LogLineCaptured(string) {
	if c == nil {
		return
	}
	c.logLines.Inc()
}
