package reqlog

import (
	"context"
	"slices"
	"sync"
)

// Sink delivers a batch of records to a (log group, log stream) destination of a remote backend. A call either
// delivers the batch or returns an error; implementations do not retry.
type Sink interface {
	PutLogEvents(ctx context.Context, logGroup, logStream string, records []Record) error
}

// SinkFunc allows casting a function to a [Sink].
type SinkFunc func(ctx context.Context, logGroup, logStream string, records []Record) error

// PutLogEvents implements the [Sink] interface.
func (f SinkFunc) PutLogEvents(ctx context.Context, logGroup, logStream string, records []Record) error {
	return f(ctx, logGroup, logStream, records)
}

// Delivery is one call observed by a [MemorySink].
type Delivery struct {
	LogGroup  string
	LogStream string
	Records   []Record
}

// MemorySink keeps every delivered batch in memory. It is meant for tests and local development.
type MemorySink struct {
	mu         sync.Mutex
	deliveries []Delivery
	err        error
}

// Fail makes every following delivery fail with err. A nil err restores normal delivery.
func (s *MemorySink) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// PutLogEvents implements the [Sink] interface.
func (s *MemorySink) PutLogEvents(_ context.Context, logGroup, logStream string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.deliveries = append(s.deliveries, Delivery{
		LogGroup:  logGroup,
		LogStream: logStream,
		Records:   slices.Clone(records),
	})

	return nil
}

// Deliveries returns the batches that were delivered so far.
func (s *MemorySink) Deliveries() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.deliveries)
}

// Records returns all delivered records in delivery order.
func (s *MemorySink) Records() (recs []Record) {
	for _, d := range s.Deliveries() {
		recs = append(recs, d.Records...)
	}

	return recs
}

var _ Sink = &MemorySink{}
