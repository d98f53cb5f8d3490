package metrics

// Collector records what the viewer sees on its subscription stream.
type Collector interface {
	// ObserveReading records one rendered snapshot.
	ObserveReading(raw uint16, fraction float64)
	// ObserveError records a terminal error by code.
	ObserveError(code string)
	Close() error
}
