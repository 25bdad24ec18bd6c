package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeFound      = "found"
	OutcomeNotFound   = "not_found"
	OutcomeBadRequest = "bad_request"
	OutcomeError      = "error"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postcode_requests_total",
		Help: "Total number of /v1/{areaType} requests by outcome",
	}, []string{"area_type", "outcome"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "postcode_request_duration_ms",
		Help:    "Lookup request duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	PartitionOpensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postcode_partition_opens_total",
		Help: "Partition opens by outcome (hit, missing, error)",
	}, []string{"outcome"})
	RowsScannedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "postcode_rows_scanned_total",
		Help: "Total partition rows read from the data source",
	})
	DrainErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "postcode_drain_errors_total",
		Help: "Total background partition drains that ended in an error",
	})
	StatsFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "postcode_stats_failures_total",
		Help: "Total failed redis statistics writes",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(PartitionOpensTotal)
	prometheus.MustRegister(RowsScannedTotal)
	prometheus.MustRegister(DrainErrorsTotal)
	prometheus.MustRegister(StatsFailuresTotal)
}

// RegisterCacheGauges exposes the current positive and negative cache sizes.
func RegisterCacheGauges(reg prometheus.Registerer, positive, negative func() int) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "postcode_positive_cache_entries",
			Help: "Entries in the positive result cache",
		}, func() float64 { return float64(positive()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "postcode_negative_cache_entries",
			Help: "Entries in the negative result cache, expired ones included until purged",
		}, func() float64 { return float64(negative()) }),
	}
	for _, g := range gauges {
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the default registry for Prometheus scraping.
func Handler() http.Handler { return promhttp.Handler() }
