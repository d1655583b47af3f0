package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
	"github.com/armadaproject/couponseed/internal/couponseed/inventory"
)

const MetricsPrefix = "couponseed_"

type Metrics struct {
	testCases          *prometheus.CounterVec
	codesGenerated     *prometheus.CounterVec
	executionsStarted  *prometheus.CounterVec
	executionOutcomes  *prometheus.CounterVec
	waitDuration       *prometheus.HistogramVec
	inventoryAvailable *prometheus.GaugeVec
}

// NewMetrics registers the orchestrator metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		testCases: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "test_cases_total",
			Help: "Number of test cases run, grouped by result",
		}, []string{"result"}),
		codesGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "codes_generated_total",
			Help: "Number of codes generated and uploaded to replenish inventory",
		}, []string{"family", "subCode"}),
		executionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "executions_started_total",
			Help: "Number of bulk-issue executions started",
		}, []string{"family"}),
		executionOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "execution_outcomes_total",
			Help: "Terminal statuses of bulk-issue executions",
		}, []string{"status"}),
		waitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricsPrefix + "wait_duration_seconds",
			Help:    "Time spent waiting for inventory or executions",
			Buckets: []float64{10, 30, 60, 300, 900, 1800, 3600, 7200, 10800, 21600},
		}, []string{"operation", "outcome"}),
		inventoryAvailable: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricsPrefix + "inventory_available",
			Help: "Available codes at the last inventory read",
		}, []string{"family", "subCode"}),
	}
}

func (m *Metrics) RecordTestCase(result string) {
	m.testCases.With(map[string]string{"result": result}).Inc()
}

func (m *Metrics) RecordCodesGenerated(family barcode.Family, subCode string, count int) {
	m.codesGenerated.With(map[string]string{"family": family.String(), "subCode": subCode}).Add(float64(count))
}

func (m *Metrics) RecordExecutionStarted(family barcode.Family) {
	m.executionsStarted.With(map[string]string{"family": family.String()}).Inc()
}

func (m *Metrics) RecordExecutionOutcome(status string) {
	m.executionOutcomes.With(map[string]string{"status": status}).Inc()
}

func (m *Metrics) RecordWait(operation string, outcome string, d time.Duration) {
	m.waitDuration.With(map[string]string{"operation": operation, "outcome": outcome}).Observe(d.Seconds())
}

// RecordInventory sets the availability gauges from a snapshot.
func (m *Metrics) RecordInventory(s *inventory.Snapshot) {
	for family, available := range s.AvailableByFamily {
		m.inventoryAvailable.With(map[string]string{"family": family.String(), "subCode": ""}).Set(float64(available))
	}
	for subCode, available := range s.AvailableMultiByCode {
		m.inventoryAvailable.With(map[string]string{"family": barcode.Mos.String(), "subCode": subCode}).Set(float64(available))
	}
}
