package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "igrovik",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	availabilityQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "igrovik",
			Name:      "availability_queries_total",
			Help:      "Count of availability queries by outcome.",
		},
		[]string{"outcome"},
	)

	reservationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "igrovik",
			Name:      "reservations_created_total",
			Help:      "Count of reservations committed.",
		},
	)

	reservationsCanceled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "igrovik",
			Name:      "reservations_canceled_total",
			Help:      "Count of reservations canceled.",
		},
	)

	slotConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "igrovik",
			Name:      "slot_conflicts_total",
			Help:      "Count of reservation commits lost to the slot unique index.",
		},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "igrovik",
			Name:      "availability_cache_lookups_total",
			Help:      "Count of availability cache lookups by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, availabilityQueries,
			reservationsCreated, reservationsCanceled, slotConflicts, cacheLookups)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncAvailabilityQuery(outcome string) {
	availabilityQueries.WithLabelValues(outcome).Inc()
}

func IncReservationCreated() {
	reservationsCreated.Inc()
}

func IncReservationCanceled() {
	reservationsCanceled.Inc()
}

func IncSlotConflict() {
	slotConflicts.Inc()
}

func IncCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}
