package core

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// StepTiming is how long one named step ran.
type StepTiming struct {
	Name     string
	Duration time.Duration
	Failed   bool
}

// Metrics collects step timings of a cook.
type Metrics struct {
	mu      sync.Mutex
	timings []StepTiming
}

func (m *Metrics) Record(name string, d time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timings = append(m.timings, StepTiming{Name: name, Duration: d, Failed: failed})
}

func (m *Metrics) Timings() []StepTiming {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StepTiming(nil), m.timings...)
}

func (m *Metrics) Total() time.Duration {
	var total time.Duration
	for _, t := range m.Timings() {
		total += t.Duration
	}
	return total
}

// Summary renders one line per step in execution order.
func (m *Metrics) Summary() string {
	var b strings.Builder
	for _, t := range m.Timings() {
		status := "ok"
		if t.Failed {
			status = "failed"
		}
		fmt.Fprintf(&b, "%-22s %10s  %s\n", t.Name, t.Duration.Round(time.Millisecond), status)
	}
	return b.String()
}
