// Package testutil provides test doubles for the pagination engine.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reflowio/paginate/pkg/document"
)

type scriptKey struct {
	unit  document.ItemRef
	width float64
}

// ScriptedMeasurer is a configurable measure.Measurer for testing. It
// serves heights and failures from a script and tracks call counts and
// the high-water mark of concurrent calls.
type ScriptedMeasurer struct {
	mu       sync.Mutex
	heights  map[scriptKey]float64
	failures map[scriptKey]error
	delay    time.Duration
	gate     chan struct{}

	calls       map[scriptKey]int
	inFlight    int
	maxInFlight int
}

// NewScriptedMeasurer creates an empty scripted measurer. Measuring a
// key with no scripted height or failure returns an error.
func NewScriptedMeasurer() *ScriptedMeasurer {
	return &ScriptedMeasurer{
		heights:  make(map[scriptKey]float64),
		failures: make(map[scriptKey]error),
		calls:    make(map[scriptKey]int),
	}
}

// SetHeight scripts a successful measurement.
func (m *ScriptedMeasurer) SetHeight(unit document.ItemRef, width, height float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heights[scriptKey{unit, width}] = height
}

// SetFailure scripts a failed measurement.
func (m *ScriptedMeasurer) SetFailure(unit document.ItemRef, width float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[scriptKey{unit, width}] = err
}

// SetDelay makes every measurement take at least d.
func (m *ScriptedMeasurer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// CloseGate makes subsequent measurements block until OpenGate is
// called or their context is cancelled.
func (m *ScriptedMeasurer) CloseGate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

// OpenGate releases all measurements blocked by CloseGate.
func (m *ScriptedMeasurer) OpenGate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Calls returns how many times (unit, width) has been measured.
func (m *ScriptedMeasurer) Calls(unit document.ItemRef, width float64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[scriptKey{unit, width}]
}

// TotalCalls returns the total number of Measure invocations.
func (m *ScriptedMeasurer) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// MaxInFlight returns the highest number of concurrent Measure calls
// observed so far.
func (m *ScriptedMeasurer) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// InFlight returns the number of Measure calls currently executing.
func (m *ScriptedMeasurer) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Measure implements measure.Measurer.
func (m *ScriptedMeasurer) Measure(ctx context.Context, unit document.ItemRef, width float64) (float64, error) {
	key := scriptKey{unit, width}

	m.mu.Lock()
	m.calls[key]++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	gate := m.gate
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failures[key]; ok {
		return 0, err
	}
	if height, ok := m.heights[key]; ok {
		return height, nil
	}
	return 0, fmt.Errorf("no scripted height for %q at width %g", unit, width)
}
