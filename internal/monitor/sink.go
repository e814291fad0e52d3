package monitor

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// SinkCallback receives each published snapshot as it arrives.
type SinkCallback interface {
	Handle(data []byte) error
}

// SinkHandler wraps the callback a Sink dispatches to, the same
// one-field indirection the bus package uses so a handler can be
// swapped without touching the Sink's lifecycle.
type SinkHandler struct {
	Callback SinkCallback
}

// Sink fans published snapshots out to a single registered handler. It
// keeps the endpoint/filter/running/handler shape of a message bus
// sink, but its "endpoint" is an in-process channel rather than a
// ZeroMQ socket since the dashboard has nothing external to subscribe
// to.
type Sink struct {
	endpoint string
	filter   string

	mu      sync.Mutex
	running bool
	handler *SinkHandler

	queue chan []byte
}

// NewSink builds a Sink identified by endpoint/filter for logging, with
// queue capacity sized for a handful of snapshots in flight.
func NewSink(endpoint, filter string) *Sink {
	return &Sink{
		endpoint: endpoint,
		filter:   filter,
		queue:    make(chan []byte, 16),
	}
}

// SetHandler installs the callback Run dispatches published data to.
func (s *Sink) SetHandler(handler *SinkHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Running reports whether Run is currently active.
func (s *Sink) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Publish enqueues data for delivery to the registered handler. It
// never blocks the caller: a full queue drops the oldest snapshot, since
// only the latest view matters to a dashboard.
func (s *Sink) Publish(data []byte) {
	select {
	case s.queue <- data:
	default:
		select {
		case <-s.queue:
		default:
		}
		select {
		case s.queue <- data:
		default:
		}
	}
}

// Run delivers published data to the registered handler until ctx is
// canceled or Stop is called, signaling wg.Done on return.
func (s *Sink) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-s.queue:
			s.dispatch(data)
		}
	}
}

// Stop marks the Sink as no longer running; the caller must still
// cancel the context passed to Run for the goroutine to exit.
func (s *Sink) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Sink) dispatch(data []byte) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	if handler == nil || handler.Callback == nil {
		return
	}
	if err := handler.Callback.Handle(data); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"endpoint": s.endpoint,
			"filter":   s.filter,
		}).Warn("monitor: sink handler failed")
	}
}

func (s *Sink) defaultFields(err error) map[string]interface{} {
	fields := map[string]interface{}{
		"endpoint": s.endpoint,
		"filter":   s.filter,
	}
	if err != nil {
		fields["err"] = err
	}
	return fields
}
