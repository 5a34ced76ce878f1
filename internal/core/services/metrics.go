package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_dataset_ingest_total",
		Help: "Dataset uploads by outcome",
	}, []string{"outcome"})

	ingestRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "churn_dataset_ingest_rows",
		Help:    "Rows per accepted dataset upload",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	})

	resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_dataset_resolve_total",
		Help: "Dataset resolutions by origin",
	}, []string{"origin"})

	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_predictions_total",
		Help: "Predicted rows by model and label",
	}, []string{"model", "label"})

	historyAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "churn_prediction_history_append_failures_total",
		Help: "Prediction history appends that failed and were skipped",
	})
)
