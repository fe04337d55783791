package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	sendLabels     = []string{"owner_id", "outcome"}
	campaignLabels = []string{"owner_id"}
	botActionLabels = []string{"owner_id", "intent"}
	dbOpLabels     = []string{"operation", "entity", "owner_id", "status"}

	// SendsTotal counts outbound message attempts by outcome (sent/failed).
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_sends_total",
			Help: "Total number of outbound message attempts, labeled by outcome.",
		},
		sendLabels,
	)

	// SendDurationSeconds observes the duration of one gateway send call.
	SendDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_send_duration_seconds",
			Help:    "Histogram of gateway send durations.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		campaignLabels,
	)

	// CampaignsCompletedTotal counts campaigns that finished iterating all targets.
	CampaignsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_campaigns_completed_total",
			Help: "Total number of campaigns that reached completed status.",
		},
		campaignLabels,
	)

	// BotCyclesTotal counts poller cycles.
	BotCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_bot_cycles_total",
			Help: "Total number of autonomous bot cycles executed.",
		},
		campaignLabels,
	)

	// BotCycleDurationSeconds observes full poller cycle durations.
	BotCycleDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_bot_cycle_duration_seconds",
			Help:    "Histogram of autonomous bot cycle durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		campaignLabels,
	)

	// BotActionsTotal counts actions taken per classified intent.
	BotActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_bot_actions_total",
			Help: "Total count of bot actions taken, labeled by classified intent.",
		},
		botActionLabels,
	)

	// DbOperationDurationSeconds observes repository operation durations.
	DbOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		dbOpLabels,
	)
)

// InitMetrics enables or disables metric collection globally.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IncSend records one outbound send attempt outcome.
func IncSend(ownerID, outcome string) {
	if !metricsEnabled {
		return
	}
	SendsTotal.WithLabelValues(ownerID, outcome).Inc()
}

// ObserveSendDuration records the duration of one gateway send.
func ObserveSendDuration(ownerID string, d time.Duration) {
	if !metricsEnabled {
		return
	}
	SendDurationSeconds.WithLabelValues(ownerID).Observe(d.Seconds())
}

// IncCampaignCompleted records one completed campaign.
func IncCampaignCompleted(ownerID string) {
	if !metricsEnabled {
		return
	}
	CampaignsCompletedTotal.WithLabelValues(ownerID).Inc()
}

// IncBotCycle records one executed poller cycle.
func IncBotCycle(ownerID string) {
	if !metricsEnabled {
		return
	}
	BotCyclesTotal.WithLabelValues(ownerID).Inc()
}

// ObserveBotCycleDuration records the duration of one poller cycle.
func ObserveBotCycleDuration(ownerID string, d time.Duration) {
	if !metricsEnabled {
		return
	}
	BotCycleDurationSeconds.WithLabelValues(ownerID).Observe(d.Seconds())
}

// IncBotAction records one bot action by intent.
func IncBotAction(ownerID string, intent string) {
	if !metricsEnabled {
		return
	}
	BotActionsTotal.WithLabelValues(ownerID, intent).Inc()
}

// ObserveDbOperationDuration records the duration and status of a repository operation.
func ObserveDbOperationDuration(operation, entity, ownerID string, d time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DbOperationDurationSeconds.WithLabelValues(operation, entity, ownerID, status).Observe(d.Seconds())
}
