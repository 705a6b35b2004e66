package cooker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-cooker/engine/core"
)

// Step is one stage of a cook.
type Step interface {
	Name() string
	// OnBuildStarted runs for every step before the first one performs.
	OnBuildStarted(data *CookingData)
	Perform(data *CookingData) error
}

// DefaultSteps is the cook order.
func DefaultSteps() []Step {
	return []Step{
		&ValidateStep{},
		&CompileScriptsStep{},
		&DeployDataStep{},
		&PrecompileAssembliesStep{},
		&PostProcessStep{},
	}
}

// Result is the outcome of a cook.
type Result struct {
	// Err is the first error of the cook, nil on success.
	Err       error
	Log       []string
	Duration  time.Duration
	SessionID uuid.UUID
	Metrics   *core.Metrics
}

func (r *Result) OK() bool {
	return r.Err == nil
}

// Cancelled reports whether the cook stopped on request.
func (r *Result) Cancelled() bool {
	return core.IsKind(r.Err, core.KindCancelled)
}

// Cooker runs the steps of a cook in order. A Cooker runs one cook at a
// time.
type Cooker struct {
	Steps []Step

	mu      sync.Mutex
	running bool
}

func NewCooker(steps ...Step) *Cooker {
	if len(steps) == 0 {
		steps = DefaultSteps()
	}
	return &Cooker{Steps: steps}
}

var ErrAlreadyCooking = errors.New("a cook is already running")

// Cook runs every step against data. It stops at the first failing step
// and before the next step once ctx is done.
func (c *Cooker) Cook(ctx context.Context, data *CookingData) *Result {
	res := &Result{SessionID: uuid.New(), Metrics: &core.Metrics{}}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		res.Err = core.NewError(core.KindValidation, "cook", ErrAlreadyCooking)
		return res
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	clock := core.NewClock()
	clock.Start()

	var logMu sync.Mutex
	addLog := func(format string, args ...interface{}) {
		logMu.Lock()
		res.Log = append(res.Log, fmt.Sprintf(format, args...))
		logMu.Unlock()
	}

	data.ctx = ctx
	data.SessionID = res.SessionID
	data.log = func(msg string) { addLog("%s", msg) }
	defer func() {
		data.ctx = nil
		data.progress = nil
		data.log = nil
	}()

	core.LogInfo("cooking %s for %s %s %s (session %s)", data.Target, data.Platform, data.Architecture, data.Configuration, res.SessionID)
	addLog("cook %s %s %s %s", data.Target, data.Platform, data.Architecture, data.Configuration)
	data.Events.Fire(core.EventCookStarted, c, core.EventContext{Message: res.SessionID.String()})

	if data.Tools != nil {
		data.Tools.OnBuildStarted(data)
	}
	for _, s := range c.Steps {
		s.OnBuildStarted(data)
	}

	n := float32(len(c.Steps))
	for i, s := range c.Steps {
		if err := ctx.Err(); err != nil {
			res.Err = core.NewError(core.KindCancelled, s.Name(), err)
			break
		}

		index := float32(i)
		name := s.Name()
		data.progress = func(label string, p float32) {
			p = min(max(p, 0), 1)
			global := (index + p) / n
			core.LogDebug("[%3.0f%%] %s", global*100, label)
			data.Events.Fire(core.EventStepProgress, c, core.EventContext{Step: name, Progress: global, Message: label})
		}

		data.Events.Fire(core.EventStepStarted, c, core.EventContext{Step: name, Progress: index / n})
		addLog("%s", name)
		start := time.Now()
		err := s.Perform(data)
		res.Metrics.Record(name, time.Since(start), err != nil)
		data.Events.Fire(core.EventStepFinished, c, core.EventContext{Step: name, Progress: (index + 1) / n, Err: err})

		if err != nil {
			if core.KindOf(err) != core.KindCancelled && ctx.Err() != nil {
				err = core.NewError(core.KindCancelled, name, errors.Join(ctx.Err(), err))
			}
			res.Err = err
			break
		}
	}

	clock.Stop()
	res.Duration = clock.Elapsed()

	switch {
	case res.Err == nil:
		core.LogInfo("cook finished in %s", res.Duration.Round(time.Millisecond))
		addLog("done")
	case res.Cancelled():
		core.LogWarn("cook cancelled")
		addLog("cancelled")
	default:
		core.LogError("cook failed: %s", res.Err)
		addLog("error: %s", res.Err)
	}
	core.LogDebug("step timings:\n%s", res.Metrics.Summary())
	data.Events.Fire(core.EventCookFinished, c, core.EventContext{Progress: 1, Err: res.Err})
	return res
}
