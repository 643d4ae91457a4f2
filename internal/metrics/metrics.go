// Package metrics exports Prometheus collectors for the spectrum engine:
// per-session noise floor and queue health, plus host resource gauges.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	noiseFloor *prometheus.GaugeVec
	peakPower  *prometheus.GaugeVec

	ingestQueueDepth  *prometheus.GaugeVec
	resultQueueDepth  *prometheus.GaugeVec
	ingestDropsTotal  *prometheus.CounterVec

	activeClients     prometheus.Gauge
	trackedSignals    prometheus.Gauge
	sweepDurationMS   prometheus.Gauge

	cpuPercent prometheus.Gauge
	memPercent prometheus.Gauge
}

// New registers and returns the engine's metric collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		noiseFloor: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "specengine_noise_floor_dbfs",
			Help: "Noise floor estimate (median of the last 64 per-frame 10th percentiles), by session",
		}, []string{"session"}),
		peakPower: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "specengine_peak_power_dbfs",
			Help: "Most recent frame's peak power, by session",
		}, []string{"session"}),
		ingestQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "specengine_ingest_queue_depth",
			Help: "Current depth of the IQ ingest queue, by session",
		}, []string{"session"}),
		resultQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "specengine_result_queue_depth",
			Help: "Current depth of the DSP result queue, by session",
		}, []string{"session"}),
		ingestDropsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "specengine_ingest_drops_total",
			Help: "Total IQ chunks dropped due to a full ingest queue, by session",
		}, []string{"session"}),
		activeClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "specengine_active_clients",
			Help: "Number of connected streaming clients",
		}),
		trackedSignals: factory.NewGauge(prometheus.GaugeOpts{
			Name: "specengine_tracked_signals",
			Help: "Number of currently tracked signals",
		}),
		sweepDurationMS: factory.NewGauge(prometheus.GaugeOpts{
			Name: "specengine_last_sweep_duration_ms",
			Help: "Duration of the most recently completed sweep pass",
		}),
		cpuPercent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "specengine_host_cpu_percent",
			Help: "Host CPU utilization percent, sampled periodically",
		}),
		memPercent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "specengine_host_mem_percent",
			Help: "Host memory utilization percent, sampled periodically",
		}),
	}
}

func (m *Metrics) ObserveNoiseFloor(session string, dbfs float32) {
	m.noiseFloor.WithLabelValues(session).Set(float64(dbfs))
}

func (m *Metrics) ObservePeakPower(session string, peak float32) {
	m.peakPower.WithLabelValues(session).Set(float64(peak))
}

func (m *Metrics) ObserveQueues(session string, ingestDepth, resultDepth int) {
	m.ingestQueueDepth.WithLabelValues(session).Set(float64(ingestDepth))
	m.resultQueueDepth.WithLabelValues(session).Set(float64(resultDepth))
}

func (m *Metrics) IncIngestDrops(session string) {
	m.ingestDropsTotal.WithLabelValues(session).Inc()
}

func (m *Metrics) SetActiveClients(n int)  { m.activeClients.Set(float64(n)) }
func (m *Metrics) SetTrackedSignals(n int) { m.trackedSignals.Set(float64(n)) }
func (m *Metrics) SetSweepDuration(d time.Duration) {
	m.sweepDurationMS.Set(float64(d.Milliseconds()))
}

// SampleHostResources polls CPU and memory utilization and updates the
// corresponding gauges. Intended to be called periodically by a background
// ticker; a sample does not wait, since cpu.Percent is called with a zero
// interval and reports utilization since its previous call.
func (m *Metrics) SampleHostResources() error {
	pct, err := cpu.Percent(0, false)
	if err == nil && len(pct) > 0 {
		m.cpuPercent.Set(pct[0])
	}
	vm, err := mem.VirtualMemory()
	if err == nil {
		m.memPercent.Set(vm.UsedPercent)
	}
	return err
}
