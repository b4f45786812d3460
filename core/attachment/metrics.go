package attachment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darasa",
		Name:      "attachment_uploads_total",
		Help:      "Number of files written to the storage bucket, by MIME category.",
	}, []string{"category"})

	removeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "darasa",
		Name:      "attachment_remove_failures_total",
		Help:      "Number of stored files that could not be removed (orphaned objects).",
	})
)
