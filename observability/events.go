package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"daochain/core/types"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured chain events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daochain",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by module and type.",
			}, []string{"module", "type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Record increments the counters for a batch of committed events and feeds
// the domain registries that are derived from event types.
func (m *eventMetrics) Record(evts []*types.Event) {
	if m == nil {
		return
	}
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		module, kind, found := strings.Cut(evt.Type, ".")
		if !found {
			module, kind = "unknown", evt.Type
		}
		m.emitted.WithLabelValues(module, kind).Inc()
		switch module {
		case "multisig":
			recordGovernance(evt)
		case "staking":
			Staking().RecordOperation(kind)
		}
	}
}

func recordGovernance(evt *types.Event) {
	gov := Governance()
	switch evt.Type {
	case "multisig.voteStarted":
		gov.RecordProposal("opened")
		gov.RecordVote("aye")
	case "multisig.voteAdded":
		if evt.Attr("aye") == "true" {
			gov.RecordVote("aye")
		} else {
			gov.RecordVote("nay")
		}
	case "multisig.voteWithdrawn":
		gov.RecordVote("withdrawn")
	case "multisig.executed":
		gov.RecordExecution(evt.Attr("success") == "true")
	case "multisig.cancelled":
		gov.RecordProposal("cancelled")
	}
}
