package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"contribook/logx"
)

type AppendRejectedReason string

var (
	AppendRejectedConflict AppendRejectedReason = "chain_conflict"
	AppendRejectedFrozen   AppendRejectedReason = "chain_frozen"
	AppendRejectedUnknown  AppendRejectedReason = "other"
)

type ledgerPromMetrics struct {
	serviceUpUnixSeconds prometheus.Gauge
	appendedBlockCount   prometheus.Counter
	rejectedAppendCount  *prometheus.CounterVec
	chainHeight          *prometheus.GaugeVec
	recomputeDuration    prometheus.Histogram
	auditDuration        prometheus.Histogram
	auditFailureCount    prometheus.Counter
	frozenTeamCount      prometheus.Counter
	verificationCount    *prometheus.CounterVec
	panicCount           prometheus.Counter
}

func newLedgerPromMetrics() *ledgerPromMetrics {
	return &ledgerPromMetrics{
		serviceUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "contribook_ledger_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the ledger service start",
			},
		),
		appendedBlockCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contribook_ledger_appended_block_count",
				Help: "The total number of blocks appended across all team chains",
			},
		),
		rejectedAppendCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contribook_ledger_rejected_append_count",
				Help: "The total number of rejected appends",
			},
			[]string{"reason"},
		),
		chainHeight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "contribook_ledger_chain_height",
				Help: "The current chain height per team",
			},
			[]string{"team"},
		),
		recomputeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "contribook_reputation_recompute_seconds",
				Help: "Duration in second of a reputation recompute",
			},
		),
		auditDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "contribook_audit_walk_seconds",
				Help: "Duration in second of a full chain audit walk",
			},
		),
		auditFailureCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contribook_audit_failure_count",
				Help: "The total number of chain audits that found an integrity violation",
			},
		),
		frozenTeamCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contribook_frozen_team_count",
				Help: "The total number of team freeze actions",
			},
		),
		verificationCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contribook_verification_count",
				Help: "The total number of recorded verification actions",
			},
			[]string{"action"},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contribook_panic_count",
				Help: "The total number of recovered panics",
			},
		),
	}
}

var ledgerMetrics *ledgerPromMetrics

// InitMetrics initialize metrics for the ledger service but not expose to api yet
func InitMetrics() {
	ledgerMetrics = newLedgerPromMetrics()
	ledgerMetrics.serviceUpUnixSeconds.SetToCurrentTime()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func initialized() bool {
	return ledgerMetrics != nil
}

func IncreaseAppendedBlockCount() {
	if !initialized() {
		return
	}
	ledgerMetrics.appendedBlockCount.Inc()
}

func RecordRejectedAppend(reason AppendRejectedReason) {
	if !initialized() {
		return
	}
	ledgerMetrics.rejectedAppendCount.With(prometheus.Labels{
		"reason": string(reason),
	}).Inc()
}

func SetChainHeight(teamID string, height uint64) {
	if !initialized() {
		return
	}
	ledgerMetrics.chainHeight.With(prometheus.Labels{
		"team": teamID,
	}).Set(float64(height))
}

func RecordRecomputeDuration(duration time.Duration) {
	if !initialized() {
		return
	}
	ledgerMetrics.recomputeDuration.Observe(duration.Seconds())
}

func RecordAuditDuration(duration time.Duration) {
	if !initialized() {
		return
	}
	ledgerMetrics.auditDuration.Observe(duration.Seconds())
}

func IncreaseAuditFailureCount() {
	if !initialized() {
		return
	}
	ledgerMetrics.auditFailureCount.Inc()
}

func IncreaseFrozenTeamCount() {
	if !initialized() {
		return
	}
	ledgerMetrics.frozenTeamCount.Inc()
}

func RecordVerificationAction(action string) {
	if !initialized() {
		return
	}
	ledgerMetrics.verificationCount.With(prometheus.Labels{
		"action": action,
	}).Inc()
}

func IncreasePanicCount() {
	if !initialized() {
		return
	}
	ledgerMetrics.panicCount.Inc()
}
