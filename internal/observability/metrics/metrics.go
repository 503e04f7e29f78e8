package metrics

import "github.com/prometheus/client_golang/prometheus"

// FlowMetrics exposes counters for stage-flow decisions.
type FlowMetrics struct {
	stageTransitions  *prometheus.CounterVec
	blockedAdvances   *prometheus.CounterVec
	analyzerFallbacks prometheus.Counter
	nudges            *prometheus.CounterVec
	endOfFlow         prometheus.Counter
}

func NewFlowMetrics(reg prometheus.Registerer) *FlowMetrics {
	m := &FlowMetrics{
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesai",
			Subsystem: "flow",
			Name:      "stage_transitions_total",
			Help:      "Total stage transitions, labeled by edge",
		}, []string{"from", "to"}),
		blockedAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesai",
			Subsystem: "flow",
			Name:      "advance_blocked_total",
			Help:      "Advance recommendations downgraded to stay",
		}, []string{"stage", "reason"}),
		analyzerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salesai",
			Subsystem: "flow",
			Name:      "analyzer_fallback_total",
			Help:      "Analyzer calls that degraded to the fallback record",
		}),
		nudges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesai",
			Subsystem: "flow",
			Name:      "nudges_total",
			Help:      "Stalling nudges injected into the instruction payload",
		}, []string{"stage"}),
		endOfFlow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salesai",
			Subsystem: "flow",
			Name:      "end_of_flow_total",
			Help:      "Advance attempts at a stage with no successor",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stageTransitions, m.blockedAdvances, m.analyzerFallbacks, m.nudges, m.endOfFlow)
	return m
}

func (m *FlowMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.stageTransitions.WithLabelValues(from, to).Inc()
}

func (m *FlowMetrics) ObserveBlockedAdvance(stage, reason string) {
	if m == nil {
		return
	}
	m.blockedAdvances.WithLabelValues(stage, reason).Inc()
}

func (m *FlowMetrics) ObserveAnalyzerFallback() {
	if m == nil {
		return
	}
	m.analyzerFallbacks.Inc()
}

func (m *FlowMetrics) ObserveNudge(stage string) {
	if m == nil {
		return
	}
	m.nudges.WithLabelValues(stage).Inc()
}

func (m *FlowMetrics) ObserveEndOfFlow() {
	if m == nil {
		return
	}
	m.endOfFlow.Inc()
}
