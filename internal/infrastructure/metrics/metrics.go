// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	QuizzesFinished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mastery_quizzes_finished_total",
			Help: "Adaptive quizzes marked completed",
		},
	)

	BlocksMastered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mastery_blocks_mastered_total",
			Help: "User blocks whose concepts are all mastered",
		},
	)

	InvariantViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mastery_invariant_violations_total",
			Help: "Records skipped because they broke a data invariant",
		},
		[]string{"kind"},
	)

	ConceptGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mastery_concept_generations_total",
			Help: "Per-concept question generation outcomes",
		},
		[]string{"result"},
	)

	GenerationTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mastery_generation_tasks_total",
			Help: "Generation task outcomes",
		},
		[]string{"result"},
	)

	GenerationTaskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mastery_generation_task_duration_seconds",
			Help:    "Wall time of a generation task run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			QuizzesFinished,
			BlocksMastered,
			InvariantViolations,
			ConceptGenerations,
			GenerationTasks,
			GenerationTaskDuration,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
