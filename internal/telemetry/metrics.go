package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docquiz"

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Number of games started.",
	})

	RoundsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_scored_total",
		Help:      "Number of rounds scored, partitioned by whether the answer timed out.",
	}, []string{"timeout"})

	OracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_calls_total",
		Help:      "Language model completions, partitioned by backend and result.",
	}, []string{"backend", "result"})

	QuestionSource = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "question_source_total",
		Help:      "Questions handed out, partitioned by where they came from.",
	}, []string{"source"})

	PrefillDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prefill_duration_seconds",
		Help:      "Time spent pre-generating the questions of a session.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
