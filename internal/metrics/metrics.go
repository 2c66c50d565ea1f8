// Package metrics exposes Prometheus collectors for the attempt lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "exstem_quiz"

var (
	AttemptsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attempts_started_total",
		Help:      "Attempts returned by start-or-resume, by outcome (new, resumed).",
	}, []string{"outcome"})

	AttemptsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attempts_submitted_total",
		Help:      "Attempts moved to submitted, by trigger (learner, expiry).",
	}, []string{"trigger"})

	AnswersRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_recorded_total",
		Help:      "Answers persisted through autosave.",
	})

	GradingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grading_item_failures_total",
		Help:      "Answers that could not be graded, by question type.",
	}, []string{"question_type"})

	GradingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "grading_duration_seconds",
		Help:      "Time spent grading and scoring one attempt.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	AutosaveDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "autosave_dropped_total",
		Help:      "Queued autosaves rejected by the attempt state machine.",
	})
)
