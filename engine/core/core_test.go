package core

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("cook: %w", NewPathError(KindDecode, "texture import", "a.dds", errors.New("bad magic")))
	if KindOf(err) != KindDecode || !IsKind(err, KindDecode) {
		t.Errorf("KindOf = %s", KindOf(err))
	}
	if KindOf(fs.ErrNotExist) != KindIO {
		t.Errorf("plain errors should count as IO")
	}
	if KindOf(nil) != KindUnknown || IsKind(nil, KindUnknown) {
		t.Errorf("nil error has a kind")
	}
	if !IsKind(ErrCancelled, KindCancelled) {
		t.Errorf("ErrCancelled is %s", KindOf(ErrCancelled))
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewPathError(KindIO, "copy", "Content/a.png", fs.ErrNotExist)
	want := "copy Content/a.png: file does not exist (IO)"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("cause lost")
	}
}

func TestEventBusStopsWhenHandled(t *testing.T) {
	bus := NewEventBus()
	var calls []string
	first, second := "first", "second"
	bus.Register(EventStepStarted, first, func(code EventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, listener.(string))
		return data.Step == "stop"
	})
	bus.Register(EventStepStarted, second, func(code EventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, listener.(string))
		return false
	})
	if bus.Register(EventStepStarted, first, func(EventCode, interface{}, interface{}, EventContext) bool { return false }) {
		t.Errorf("duplicate listener registered")
	}

	if bus.Fire(EventStepStarted, nil, EventContext{Step: "go"}) {
		t.Errorf("unhandled event reported as handled")
	}
	if !bus.Fire(EventStepStarted, nil, EventContext{Step: "stop"}) {
		t.Errorf("handled event not reported")
	}
	if got := strings.Join(calls, ","); got != "first,second,first" {
		t.Errorf("calls = %s", got)
	}

	if !bus.Unregister(EventStepStarted, first) || bus.Unregister(EventStepStarted, first) {
		t.Errorf("unregister")
	}
	var nilBus *EventBus
	if nilBus.Fire(EventStepStarted, nil, EventContext{}) {
		t.Errorf("nil bus handled an event")
	}
}

func TestMetricsSummary(t *testing.T) {
	m := &Metrics{}
	m.Record("Compile Scripts", 2*time.Second, false)
	m.Record("Cook Assets", time.Second, true)
	if m.Total() != 3*time.Second {
		t.Errorf("total = %s", m.Total())
	}
	lines := strings.Split(strings.TrimSpace(m.Summary()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "Compile Scripts") || !strings.HasSuffix(lines[1], "failed") {
		t.Errorf("summary = %q", m.Summary())
	}
}
