package ocr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipt_scans_total",
		Help: "Receipt scans by outcome (ok, no_amount, decode_error, engine_error).",
	}, []string{"result"})

	scanSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "receipt_scan_seconds",
		Help:    "Duration of a full preprocess+recognize+extract scan.",
		Buckets: prometheus.DefBuckets,
	})
)
