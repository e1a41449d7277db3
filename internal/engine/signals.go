package engine

import (
	"sync"
	"time"

	"github.com/vigilstack/vigil-telemetry/internal/metrics"
)

// SignalKind enumerates the outbound notification kinds.
type SignalKind string

const (
	SignalErrorRecorded         SignalKind = "error-recorded"
	SignalCriticalError         SignalKind = "critical-error"
	SignalPerformanceRecorded   SignalKind = "performance-recorded"
	SignalPerformanceWarning    SignalKind = "performance-warning"
	SignalPerformanceCritical   SignalKind = "performance-critical"
	SignalAnomalyDetected       SignalKind = "anomaly-detected"
	SignalPatternAlert          SignalKind = "pattern-alert"
	SignalPerformanceRegression SignalKind = "performance-regression"
)

// Signal is a fire-and-forget notification to collaborators.
type Signal struct {
	Kind      SignalKind
	Timestamp time.Time
	Payload   any
}

// SignalHandler consumes signals. Handlers run on the bus's dispatch
// goroutine and must not block.
type SignalHandler func(Signal)

// SignalBus fans signals out to subscribers through a bounded buffer.
// Publishing never blocks: when the buffer is full the signal is counted and
// dropped.
type SignalBus struct {
	mu       sync.RWMutex
	handlers map[SignalKind][]SignalHandler
	queue    chan Signal
	closed   bool
	done     chan struct{}
}

// NewSignalBus creates a bus with the given buffer size and starts its
// dispatch loop.
func NewSignalBus(buffer int) *SignalBus {
	if buffer <= 0 {
		buffer = 256
	}
	bus := &SignalBus{
		handlers: make(map[SignalKind][]SignalHandler),
		queue:    make(chan Signal, buffer),
		done:     make(chan struct{}),
	}
	go bus.dispatch()
	return bus
}

// Subscribe registers a handler for one signal kind.
func (b *SignalBus) Subscribe(kind SignalKind, handler SignalHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], handler)
	b.mu.Unlock()
}

// Publish enqueues a signal. Safe for concurrent use; a closed bus discards.
func (b *SignalBus) Publish(kind SignalKind, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	metrics.ObserveSignal(string(kind))
	select {
	case b.queue <- Signal{Kind: kind, Timestamp: time.Now(), Payload: payload}:
	default:
		metrics.ObserveSignalDrop()
	}
}

// Close stops intake, drains the queued signals, and waits for dispatch to
// finish.
func (b *SignalBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	<-b.done
}

func (b *SignalBus) dispatch() {
	defer close(b.done)
	for signal := range b.queue {
		b.mu.RLock()
		handlers := append([]SignalHandler(nil), b.handlers[signal.Kind]...)
		b.mu.RUnlock()
		for _, handler := range handlers {
			handler(signal)
		}
	}
}
