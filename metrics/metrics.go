// Package metrics hält die Prometheus-Collectoren der Dossier-Pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dossier_jobs_total",
			Help: "Finished dossier jobs by terminal status.",
		},
		[]string{"status"},
	)
	PapersAdded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dossier_papers_added_total",
			Help: "Total number of new papers added to the database.",
		},
	)
	SourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dossier_source_failures_total",
			Help: "Literature searches that failed or timed out, by source.",
		},
		[]string{"source"},
	)
	ExtractionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dossier_extraction_failures_total",
			Help: "Papers excluded from synthesis because evidence extraction failed.",
		},
	)
	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dossier_job_duration_seconds",
			Help:    "Wall time of one dossier pipeline run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)
)

func init() {
	prometheus.MustRegister(JobsTotal, PapersAdded, SourceFailures, ExtractionFailures, JobDuration)
}
