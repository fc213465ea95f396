package scan

import (
	"strings"
	"sync"
	"time"

	"github.com/wms-platform/picker-terminal/internal/logging"
	"github.com/wms-platform/picker-terminal/internal/metrics"
)

// DefaultDebounceWindow suppresses duplicate notifications when one physical
// scan is observed by both the hardware intent listener and the keyboard
// wedge listener.
const DefaultDebounceWindow = 500 * time.Millisecond

// Source identifies where a raw scan came from
type Source string

const (
	SourceIntent   Source = "intent"
	SourceKeyboard Source = "keyboard"
	SourceManual   Source = "manual"
)

// Event is one accepted, canonical scan
type Event struct {
	Barcode string
	Source  Source
	Time    time.Time
}

// Listener receives accepted scan events
type Listener func(Event)

type subscription struct {
	id int
	fn Listener
}

// Normalizer accepts raw scans from heterogeneous sources, debounces
// duplicates by time window, and fans accepted events out to subscribers in
// registration order. A panicking subscriber is isolated so the remaining
// subscribers still receive the event.
type Normalizer struct {
	mu        sync.Mutex
	clock     Clock
	window    time.Duration
	lastEmit  time.Time
	nextID    int
	listeners []subscription
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithDebounceWindow overrides the duplicate suppression window
func WithDebounceWindow(window time.Duration) Option {
	return func(n *Normalizer) { n.window = window }
}

// WithMetrics attaches scan counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Normalizer) { n.metrics = m }
}

// NewNormalizer creates a Normalizer reading time from the given clock
func NewNormalizer(clock Clock, logger *logging.Logger, opts ...Option) *Normalizer {
	n := &Normalizer{
		clock:  clock,
		window: DefaultDebounceWindow,
		logger: logger.WithComponent("scan"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe registers a listener and returns its unsubscribe function
func (n *Normalizer) Subscribe(fn Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.listeners = append(n.listeners, subscription{id: id, fn: fn})

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, sub := range n.listeners {
			if sub.id == id {
				n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
				return
			}
		}
	}
}

// Emit submits a raw barcode. It returns false when the input is empty or
// arrives inside the debounce window of the previous accepted emission,
// regardless of source.
func (n *Normalizer) Emit(rawBarcode string, source Source) bool {
	barcode := strings.TrimSpace(rawBarcode)
	if barcode == "" {
		return false
	}

	n.mu.Lock()
	now := n.clock.Now()
	if !n.lastEmit.IsZero() && now.Sub(n.lastEmit) < n.window {
		n.mu.Unlock()
		n.logger.Debug("Debounced duplicate scan", "source", string(source))
		if n.metrics != nil {
			n.metrics.ScansDebounced.Inc()
		}
		return false
	}
	n.lastEmit = now
	subs := make([]subscription, len(n.listeners))
	copy(subs, n.listeners)
	n.mu.Unlock()

	event := Event{Barcode: barcode, Source: source, Time: now}
	if n.metrics != nil {
		n.metrics.ScansAccepted.WithLabelValues(string(source)).Inc()
	}

	for _, sub := range subs {
		n.deliver(sub, event)
	}
	return true
}

// deliver invokes one listener, containing panics
func (n *Normalizer) deliver(sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Scan listener panicked", "panic", r, "barcode", event.Barcode)
		}
	}()
	sub.fn(event)
}
