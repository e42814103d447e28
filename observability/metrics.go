package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type runtimeMetrics struct {
	extrinsics  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	weight      prometheus.Histogram
	blockHeight prometheus.Gauge
}

type governanceMetrics struct {
	proposals  *prometheus.CounterVec
	votes      *prometheus.CounterVec
	executions *prometheus.CounterVec
}

type stakingMetrics struct {
	operations *prometheus.CounterVec
	era        prometheus.Gauge
	queueDepth prometheus.Gauge
	queueSteps *prometheus.CounterVec
}

var (
	runtimeMetricsOnce sync.Once
	runtimeRegistry    *runtimeMetrics

	governanceMetricsOnce sync.Once
	governanceRegistry    *governanceMetrics

	stakingMetricsOnce sync.Once
	stakingRegistry    *stakingMetrics
)

// Runtime returns the lazily-initialised registry tracking extrinsic
// execution and block processing.
func Runtime() *runtimeMetrics {
	runtimeMetricsOnce.Do(func() {
		runtimeRegistry = &runtimeMetrics{
			extrinsics: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daochain",
				Subsystem: "runtime",
				Name:      "extrinsics_total",
				Help:      "Applied extrinsics segmented by call and outcome.",
			}, []string{"call", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "daochain",
				Subsystem: "runtime",
				Name:      "extrinsic_duration_seconds",
				Help:      "Latency distribution for extrinsic execution.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"call"}),
			weight: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "daochain",
				Subsystem: "runtime",
				Name:      "block_weight",
				Help:      "Weight consumed per processed block.",
				Buckets:   prometheus.ExponentialBuckets(10_000, 4, 10),
			}),
			blockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "daochain",
				Subsystem: "runtime",
				Name:      "block_height",
				Help:      "Height of the last processed block.",
			}),
		}
		prometheus.MustRegister(
			runtimeRegistry.extrinsics,
			runtimeRegistry.latency,
			runtimeRegistry.weight,
			runtimeRegistry.blockHeight,
		)
	})
	return runtimeRegistry
}

// ObserveExtrinsic records the outcome and latency of one extrinsic.
func (m *runtimeMetrics) ObserveExtrinsic(call string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	if call == "" {
		call = "undecodable"
	}
	outcome := "ok"
	if !success {
		outcome = "failed"
	}
	m.extrinsics.WithLabelValues(call, outcome).Inc()
	m.latency.WithLabelValues(call).Observe(elapsed.Seconds())
}

// ObserveBlock records the height and consumed weight of a processed block.
func (m *runtimeMetrics) ObserveBlock(height uint64, weight uint64) {
	if m == nil {
		return
	}
	m.blockHeight.Set(float64(height))
	m.weight.Observe(float64(weight))
}

// Governance returns the registry tracking multisig proposal activity.
func Governance() *governanceMetrics {
	governanceMetricsOnce.Do(func() {
		governanceRegistry = &governanceMetrics{
			proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daochain",
				Subsystem: "governance",
				Name:      "proposals_total",
				Help:      "Multisig proposals segmented by lifecycle transition.",
			}, []string{"transition"}),
			votes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daochain",
				Subsystem: "governance",
				Name:      "votes_total",
				Help:      "Multisig votes segmented by direction.",
			}, []string{"direction"}),
			executions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daochain",
				Subsystem: "governance",
				Name:      "executions_total",
				Help:      "Dispatched proposals segmented by result.",
			}, []string{"result"}),
		}
		prometheus.MustRegister(
			governanceRegistry.proposals,
			governanceRegistry.votes,
			governanceRegistry.executions,
		)
	})
	return governanceRegistry
}

// RecordProposal counts a proposal lifecycle transition (opened, cancelled).
func (m *governanceMetrics) RecordProposal(transition string) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(transition).Inc()
}

// RecordVote counts a vote in the given direction (aye, nay, withdrawn).
func (m *governanceMetrics) RecordVote(direction string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(direction).Inc()
}

// RecordExecution counts a dispatched proposal.
func (m *governanceMetrics) RecordExecution(success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.executions.WithLabelValues(result).Inc()
}

// Staking returns the registry tracking staking operations and the
// unregistration queue.
func Staking() *stakingMetrics {
	stakingMetricsOnce.Do(func() {
		stakingRegistry = &stakingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daochain",
				Subsystem: "staking",
				Name:      "operations_total",
				Help:      "Staking operations segmented by kind.",
			}, []string{"kind"}),
			era: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "daochain",
				Subsystem: "staking",
				Name:      "current_era",
				Help:      "Era in progress.",
			}),
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "daochain",
				Subsystem: "staking",
				Name:      "unregister_queue_depth",
				Help:      "Pending unregistration work items.",
			}),
			queueSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daochain",
				Subsystem: "staking",
				Name:      "unregister_steps_total",
				Help:      "Unregistration queue steps segmented by status.",
			}, []string{"status"}),
		}
		prometheus.MustRegister(
			stakingRegistry.operations,
			stakingRegistry.era,
			stakingRegistry.queueDepth,
			stakingRegistry.queueSteps,
		)
	})
	return stakingRegistry
}

// RecordOperation counts a staking operation.
func (m *stakingMetrics) RecordOperation(kind string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(kind).Inc()
}

// SetEra publishes the era in progress.
func (m *stakingMetrics) SetEra(era uint32) {
	if m == nil {
		return
	}
	m.era.Set(float64(era))
}

// ObserveQueue records a queue step and the remaining depth.
func (m *stakingMetrics) ObserveQueue(status string, depth uint64) {
	if m == nil {
		return
	}
	m.queueSteps.WithLabelValues(status).Inc()
	m.queueDepth.Set(float64(depth))
}
