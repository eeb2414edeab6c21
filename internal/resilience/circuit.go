package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	Closed State = iota
	Open
	// HalfOpen admits a single probe; its outcome decides the next state.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker opens when the failure ratio over the most recent outcomes reaches
// a threshold. Outcomes are kept in a fixed ring, so old failures age out.
type Breaker struct {
	mu           sync.Mutex
	state        State
	window       []bool // true = failure
	next         int
	filled       int
	failures     int
	minRequests  int
	failureRatio float64
	openFor      time.Duration
	openedAt     time.Time
	probing      bool

	target string
	logger zerolog.Logger
	now    func() time.Time
}

// NewBreaker builds a breaker that evaluates the ratio once minRequests
// outcomes are recorded. The ring holds twice that many outcomes.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	minRequests = max(minRequests, 1)
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	failureRatio = min(failureRatio, 1)
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		window:       make([]bool, minRequests*2),
		minRequests:  minRequests,
		failureRatio: failureRatio,
		openFor:      openFor,
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn when the breaker admits it and reports the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	b.Report(ctx, err == nil)
	return err
}

// Allow reports whether a call may proceed. After the cool-off an open
// breaker admits exactly one probe.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.openFor {
			return false
		}
		b.transitionLocked(ctx, HalfOpen)
		b.probing = true
		return true
	default:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// Report records the outcome of an admitted call.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}

	b.recordLocked(!success)
	if b.filled < b.minRequests {
		return
	}
	if float64(b.failures)/float64(b.filled) >= b.failureRatio {
		b.transitionLocked(ctx, Open)
	}
}

func (b *Breaker) recordLocked(failed bool) {
	if b.filled == len(b.window) {
		if b.window[b.next] {
			b.failures--
		}
	} else {
		b.filled++
	}
	b.window[b.next] = failed
	if failed {
		b.failures++
	}
	b.next = (b.next + 1) % len(b.window)
}

func (b *Breaker) resetLocked() {
	clear(b.window)
	b.next, b.filled, b.failures = 0, 0, 0
}

// WithTarget sets the dependency name used in metric labels and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	b.publishStateLocked()
	return b
}

// WithClock replaces the time source.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
	return b
}

func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

func (b *Breaker) transitionLocked(ctx context.Context, to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	switch to {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.resetLocked()
	b.publishStateLocked()

	label := b.label()
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(label, from.String(), to.String()).Inc()
	}
	if to == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}

	logger := b.logger
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger.GetLevel() != zerolog.Disabled {
		logger = *ctxLogger
	}
	evt := logger.Info().Str("target", label).Str("from_state", from.String()).Str("to_state", to.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) publishStateLocked() {
	if BreakerState == nil {
		return
	}
	var v float64
	switch b.state {
	case Open:
		v = 1
	case HalfOpen:
		v = 2
	}
	BreakerState.WithLabelValues(b.label()).Set(v)
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}
