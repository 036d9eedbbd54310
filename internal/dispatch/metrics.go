package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vote_jobs_total",
		Help: "Jobs de votação finalizados, por portal e categoria de resultado.",
	}, []string{"portal", "category"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vote_job_duration_seconds",
		Help:    "Duração do job de votação, do dequeue ao resultado final.",
		Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 180},
	}, []string{"portal"})

	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vote_jobs_in_flight",
		Help: "Jobs de votação em execução no momento.",
	})
)
