// Package metrics exposes Prometheus instruments for the risk pipeline.
package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	JobReasonDeadlineExceeded = "deadline_exceeded"
	JobReasonLockHeld         = "lock_held"
	JobReasonDB               = "db"
	JobReasonUnknown          = "unknown"
)

// Config carries the constant labels stamped on every instrument.
type Config struct {
	ServiceName string
	Environment string
}

// RiskMetrics captures scheduler and scoring health signals.
type RiskMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	runLoopLag     prometheus.Observer
	housesScored   prometheus.Counter
	scoreObserved  prometheus.Histogram
	advancesTotal  prometheus.Counter
	advanceAmount  prometheus.Counter
	ledgerDrift    prometheus.Counter
	historyPurged  prometheus.Counter
	warningsIssued prometheus.Counter
}

var (
	riskMetricsOnce sync.Once
	riskMetrics     *RiskMetrics
)

// Risk returns the singleton risk metrics registry.
func Risk() *RiskMetrics {
	return RiskWithConfig(Config{})
}

// RiskWithConfig returns the singleton risk metrics registry using config labels.
func RiskWithConfig(cfg Config) *RiskMetrics {
	riskMetricsOnce.Do(func() {
		riskMetrics = newRiskMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return riskMetrics
}

// ResetRiskMetricsForTest resets the singleton for tests.
func ResetRiskMetricsForTest() {
	riskMetricsOnce = sync.Once{}
	riskMetrics = nil
}

func newRiskMetrics(registerer prometheus.Registerer, cfg Config) *RiskMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "splitnest"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "splitnest_scheduler_job_runs_total",
		Help:        "Scheduler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "splitnest_scheduler_job_errors_total",
		Help:        "Scheduler job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "splitnest_scheduler_job_duration_seconds",
		Help:        "Scheduler job latency to keep scoring freshness within target.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"job"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "splitnest_scheduler_runloop_lag_seconds",
		Help:        "Scheduler run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})
	housesScored := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "splitnest_risk_houses_scored_total",
		Help:        "House status index recomputations committed.",
		ConstLabels: constLabels,
	})
	scoreObserved := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "splitnest_risk_score",
		Help:        "Distribution of committed house scores.",
		Buckets:     []float64{10, 20, 30, 40, 45, 50, 55, 60, 70, 80, 90, 100},
		ConstLabels: constLabels,
	})
	advancesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "splitnest_advance_charges_total",
		Help:        "Charges fronted by the platform.",
		ConstLabels: constLabels,
	})
	advanceAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "splitnest_advance_amount_cents_total",
		Help:        "Cents fronted by the platform.",
		ConstLabels: constLabels,
	})
	ledgerDrift := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "splitnest_advance_ledger_drift_total",
		Help:        "Audits where the ledger view disagreed with charge state.",
		ConstLabels: constLabels,
	})
	historyPurged := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "splitnest_risk_history_purged_rows_total",
		Help:        "Weekly history snapshots removed by retention cleanup.",
		ConstLabels: constLabels,
	})
	warningsIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "splitnest_risk_warnings_issued_total",
		Help:        "House warnings delivered after a score drop.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		jobRuns,
		jobErrors,
		jobDuration,
		runLoopLag,
		housesScored,
		scoreObserved,
		advancesTotal,
		advanceAmount,
		ledgerDrift,
		historyPurged,
		warningsIssued,
	)

	return &RiskMetrics{
		jobRuns:        jobRuns,
		jobErrors:      jobErrors,
		jobDuration:    jobDuration,
		runLoopLag:     runLoopLag,
		housesScored:   housesScored,
		scoreObserved:  scoreObserved,
		advancesTotal:  advancesTotal,
		advanceAmount:  advanceAmount,
		ledgerDrift:    ledgerDrift,
		historyPurged:  historyPurged,
		warningsIssued: warningsIssued,
	}
}

// IncJobRun increments the run counter for a scheduler job.
func (m *RiskMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// IncJobError increments the scheduler job error counter with classification.
func (m *RiskMetrics) IncJobError(job string, err error) {
	if m == nil || m.jobErrors == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, classifyJobReason(err)).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *RiskMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *RiskMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil || m.runLoopLag == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.runLoopLag.Observe(duration.Seconds())
}

// IncHouseScored records one committed recomputation and its score.
func (m *RiskMetrics) IncHouseScored(score int) {
	if m == nil {
		return
	}
	if m.housesScored != nil {
		m.housesScored.Inc()
	}
	if m.scoreObserved != nil {
		m.scoreObserved.Observe(float64(score))
	}
}

// AddAdvanced records fronted charges and the cents moved.
func (m *RiskMetrics) AddAdvanced(charges int, amount int64) {
	if m == nil || charges <= 0 {
		return
	}
	if m.advancesTotal != nil {
		m.advancesTotal.Add(float64(charges))
	}
	if m.advanceAmount != nil {
		m.advanceAmount.Add(float64(amount))
	}
}

// IncLedgerDrift records one failed state-versus-ledger audit.
func (m *RiskMetrics) IncLedgerDrift() {
	if m == nil || m.ledgerDrift == nil {
		return
	}
	m.ledgerDrift.Inc()
}

// AddHistoryPurged records rows removed by retention cleanup.
func (m *RiskMetrics) AddHistoryPurged(rows int64) {
	if m == nil || m.historyPurged == nil || rows <= 0 {
		return
	}
	m.historyPurged.Add(float64(rows))
}

// IncWarningIssued records one delivered house warning.
func (m *RiskMetrics) IncWarningIssued() {
	if m == nil || m.warningsIssued == nil {
		return
	}
	m.warningsIssued.Inc()
}

func classifyJobReason(err error) string {
	switch {
	case err == nil:
		return JobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return JobReasonDeadlineExceeded
	case isDBError(err):
		return JobReasonDB
	default:
		return JobReasonUnknown
	}
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	return errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey)
}
