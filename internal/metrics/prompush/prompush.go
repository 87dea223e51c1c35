// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A batch run is too short-lived to be scraped, so collectors live in a
// private registry that Flush pushes to the gateway under the job name.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // step, status
	stepDuration *prometheus.SummaryVec // step, status
	rowCounter   *prometheus.CounterVec // stage, table
	issueCounter *prometheus.CounterVec // kind
	batchCounter prometheus.Counter
	topShare     prometheus.Gauge
}

// NewBackend constructs a backend pushing to gatewayURL under jobName
// (default "ecommerce-etl").
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "ecommerce-etl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline step duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows per table as seen by each stage.",
		}, []string{"stage", "table"}),
		issueCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.IssuesTotal,
			Help: "Data quality issues by kind.",
		}, []string{"kind"}),
		batchCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Database batches flushed by the loader.",
		}),
		topShare: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metrics.TopCustomerShare,
			Help: "Spend share of the top customer slice.",
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter": b.stepCounter,
		"step summary": b.stepDuration,
		"row counter":  b.rowCounter,
		"issues":       b.issueCounter,
		"batches":      b.batchCounter,
		"top share":    b.topShare,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["stage"], labels["table"]).Add(delta)
		}
	case metrics.IssuesTotal:
		if b.issueCounter != nil {
			b.issueCounter.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.BatchesTotal:
		if b.batchCounter != nil {
			b.batchCounter.Add(delta)
		}
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

func (b *Backend) SetGauge(name string, value float64, _ metrics.Labels) {
	if name != metrics.TopCustomerShare || b.topShare == nil {
		return
	}
	b.topShare.Set(value)
}

// Flush pushes the registry to the Pushgateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}
