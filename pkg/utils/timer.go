package utils

import (
	"sync"
	"time"
)

// TimerOutput defines the interface for outputting timer results.
type TimerOutput interface {
	Output(format string, args ...interface{})
}

// LoggerOutput adapts Logger to TimerOutput at debug level.
type LoggerOutput struct {
	Logger Logger
}

// Output implements TimerOutput using Logger.Debug.
func (o *LoggerOutput) Output(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Debug(format, args...)
	}
}

// Phase is one timed phase.
type Phase struct {
	Name      string
	StartTime time.Time
	Duration  time.Duration
	completed bool
}

// PhaseTimer stops a single phase. It is intended for use with defer.
type PhaseTimer struct {
	timer *Timer
	phase *Phase
}

// Stop records the phase duration. Only the first call has effect.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.stop(pt.phase)
}

// Timer records sequential phases of an operation.
type Timer struct {
	mu        sync.Mutex
	name      string
	startTime time.Time
	phases    []*Phase
	output    TimerOutput
	enabled   bool
	clock     Clock
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithOutput sets the output strategy for the timer.
func WithOutput(output TimerOutput) TimerOption {
	return func(t *Timer) {
		t.output = output
	}
}

// WithLogger sets a Logger as the output strategy.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		if logger != nil {
			t.output = &LoggerOutput{Logger: logger}
		}
	}
}

// WithEnabled sets whether the timer is enabled. A disabled timer records
// nothing.
func WithEnabled(enabled bool) TimerOption {
	return func(t *Timer) {
		t.enabled = enabled
	}
}

// WithClock sets a custom clock for testability.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		t.clock = clock
	}
}

// NewTimer creates a new Timer with the given name and options.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:    name,
		enabled: true,
		clock:   NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.startTime = t.clock.Now()
	return t
}

// Start starts timing a new phase.
func (t *Timer) Start(name string) *PhaseTimer {
	p := &Phase{Name: name}
	if !t.enabled {
		p.completed = true
		return &PhaseTimer{timer: t, phase: p}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	p.StartTime = t.clock.Now()
	t.phases = append(t.phases, p)
	return &PhaseTimer{timer: t, phase: p}
}

func (t *Timer) stop(p *Phase) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !p.completed {
		p.Duration = t.clock.Now().Sub(p.StartTime)
		p.completed = true
	}
	return p.Duration
}

// TimeFuncWithError times fn as a phase.
func (t *Timer) TimeFuncWithError(name string, fn func() error) (time.Duration, error) {
	pt := t.Start(name)
	err := fn()
	return pt.Stop(), err
}

// Phases returns copies of the recorded phases in start order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Phase, len(t.phases))
	for i, p := range t.phases {
		out[i] = *p
	}
	return out
}

// TotalDuration returns the time elapsed since the timer was created.
func (t *Timer) TotalDuration() time.Duration {
	return t.clock.Since(t.startTime)
}

// PrintSummary writes every phase and the total through the output strategy.
func (t *Timer) PrintSummary() {
	if !t.enabled || t.output == nil {
		return
	}
	t.output.Output("=== %s Timing Summary ===", t.name)
	for i, p := range t.Phases() {
		t.output.Output("Phase %d - %s: %v", i+1, p.Name, p.Duration)
	}
	t.output.Output("Total: %v", t.TotalDuration())
}
