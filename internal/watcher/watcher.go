// Package watcher polls the foreground window and fires a callback when
// focus enters a window matching a monitoring rule. Notification is
// edge-triggered: the callback fires once per entry into a matching
// context, not on every poll while the user stays there.
package watcher

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the poll period.
const DefaultInterval = time.Second

// Sample is one foreground-window observation. Title and ProcessName
// may be empty when no window is focusable. IsSelf marks windows owned
// by this application's own process; those samples are transparent to
// the trigger state machine.
type Sample struct {
	Title       string
	ProcessName string
	IsSelf      bool
}

// Sensor queries the current foreground window once. Implementations
// wrap platform window APIs; tests supply scripted sensors.
type Sensor interface {
	Sample() (Sample, error)
}

// SensorFunc adapts a function to the Sensor interface.
type SensorFunc func() (Sample, error)

func (f SensorFunc) Sample() (Sample, error) { return f() }

// NopSensor reports a neutral sample every poll. Useful for headless
// builds where no window system is reachable.
func NopSensor() Sensor {
	return SensorFunc(func() (Sample, error) { return Sample{}, nil })
}

// RuleSet is one reload's snapshot of enabled rules. Process names are
// tested before title keywords, and the conventional ".exe" suffix on a
// process rule is ignored for comparison.
type RuleSet struct {
	Processes []string
	Titles    []string
}

// Match classifies a sample. The returned key identifies which rule
// matched ("proc:<name>" or "title:<keyword>") so the state machine can
// tell moving between two different risky windows apart from staying in
// one.
func (rs RuleSet) Match(s Sample) (string, bool) {
	proc := strings.ToLower(s.ProcessName)
	if proc != "" {
		for _, p := range rs.Processes {
			p = strings.TrimSuffix(strings.ToLower(p), ".exe")
			if p != "" && strings.Contains(proc, p) {
				return "proc:" + p, true
			}
		}
	}

	title := strings.ToLower(s.Title)
	if title != "" {
		for _, kw := range rs.Titles {
			kw = strings.ToLower(kw)
			if kw != "" && strings.Contains(title, kw) {
				return "title:" + kw, true
			}
		}
	}
	return "", false
}

// TriggerFunc receives the matched rule key and the sample that caused
// the transition.
type TriggerFunc func(key string, s Sample)

// Watcher runs the poll loop. Create with New, then Start. Rule edits
// do not propagate automatically; call ReloadRules after mutating rules
// in storage.
type Watcher struct {
	sensor    Sensor
	rulesFn   func() (RuleSet, error)
	onTrigger TriggerFunc
	interval  time.Duration
	log       zerolog.Logger

	mu      sync.Mutex
	rules   RuleSet
	lastKey string

	stop chan struct{}
	done chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval overrides the poll period. Tests use short intervals.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Watcher) { w.log = log }
}

// New builds a Watcher and loads the initial rule snapshot via rulesFn.
func New(sensor Sensor, rulesFn func() (RuleSet, error), onTrigger TriggerFunc, opts ...Option) (*Watcher, error) {
	if sensor == nil {
		return nil, fmt.Errorf("watcher: nil sensor")
	}
	if onTrigger == nil {
		onTrigger = func(string, Sample) {}
	}

	w := &Watcher{
		sensor:    sensor,
		rulesFn:   rulesFn,
		onTrigger: onTrigger,
		interval:  DefaultInterval,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.ReloadRules(); err != nil {
		return nil, err
	}
	return w, nil
}

// ReloadRules re-reads the rule snapshot and replaces the in-memory
// lists atomically. Safe to call while the poll loop is running.
func (w *Watcher) ReloadRules() error {
	if w.rulesFn == nil {
		return nil
	}
	rules, err := w.rulesFn()
	if err != nil {
		return fmt.Errorf("watcher: reload rules: %w", err)
	}
	w.mu.Lock()
	w.rules = rules
	w.mu.Unlock()
	w.log.Debug().
		Int("processes", len(rules.Processes)).
		Int("titles", len(rules.Titles)).
		Msg("rules reloaded")
	return nil
}

// Start launches the poll loop on its own goroutine. Calling Start on
// an already running watcher is not supported.
func (w *Watcher) Start() {
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop()
	w.log.Info().Dur("interval", w.interval).Msg("watcher started")
}

// Stop signals the loop to exit after its current iteration and waits
// for it to finish. An in-flight sensor query is never interrupted.
func (w *Watcher) Stop() {
	if w.stop == nil {
		return
	}
	close(w.stop)
	<-w.done
	w.stop = nil
	w.log.Info().Msg("watcher stopped")
}

func (w *Watcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.step()
		}
	}
}

// step runs one poll iteration. A failing sensor or a bad sample never
// terminates the loop; the error is logged and the iteration skipped.
func (w *Watcher) step() {
	sample, err := w.sensor.Sample()
	if err != nil {
		w.log.Debug().Err(err).Msg("sensor query failed")
		return
	}

	// Focus on our own windows pauses the machine without resetting it.
	// Bouncing onto the tool's popup and back must not count as leaving
	// and re-entering the risky window.
	if sample.IsSelf {
		return
	}

	w.mu.Lock()
	key, matched := w.rules.Match(sample)
	switch {
	case !matched:
		w.lastKey = ""
		w.mu.Unlock()
	case key == w.lastKey:
		w.mu.Unlock()
	default:
		w.lastKey = key
		w.mu.Unlock()
		w.log.Debug().Str("key", key).Str("process", sample.ProcessName).Msg("trigger")
		w.onTrigger(key, sample)
	}
}
