package sessions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	testsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmv_test_sessions_started_total",
			Help: "Test sessions started or resumed",
		},
		[]string{"state", "resumed"},
	)

	testsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmv_test_sessions_completed_total",
			Help: "Test sessions completed",
		},
		[]string{"state", "passed"},
	)

	testScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dmv_test_score_percent",
			Help:    "Score of completed tests as a percentage",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	answersRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmv_answers_total",
			Help: "Answers recorded by kind and correctness",
		},
		[]string{"kind", "correct"},
	)

	trainingSetsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmv_training_sets_completed_total",
			Help: "Training sets fully mastered",
		},
	)

	persistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmv_progress_persistence_failures_total",
			Help: "Progress store operations that failed and fell back to memory",
		},
		[]string{"op"},
	)
)
