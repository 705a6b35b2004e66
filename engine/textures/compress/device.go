package compress

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-cooker/engine/core"
)

var (
	ErrNoWorkers           = fmt.Errorf("attempting to create a compression device with less than 1 worker")
	ErrNegativeChannelSize = fmt.Errorf("attempting to create a compression device with a negative queue size")
	ErrDeviceClosed        = errors.New("compression device is shut down")
)

// Task is a unit of work run by a Device worker.
type Task func() error

// Future is the pending result of a submitted Task.
type Future struct {
	done chan struct{}
	err  error
}

// Wait blocks until the task finished or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return core.NewError(core.KindCancelled, "compression wait", ctx.Err())
	}
}

type job struct {
	task   Task
	future *Future
}

// Device is an accelerated compression backend: a pool of workers fed by a
// queue. Callers submit block rows and await the returned futures.
type Device struct {
	numWorkers int
	jobQueue   chan job
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDevice(numWorkers int, queueSize int) (*Device, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if queueSize < 0 {
		return nil, ErrNegativeChannelSize
	}
	d := &Device{
		numWorkers: numWorkers,
		jobQueue:   make(chan job, queueSize),
	}
	d.start()
	return d, nil
}

func (d *Device) start() {
	for i := 0; i < d.numWorkers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.jobQueue {
				j.future.err = runTask(j.task)
				close(j.future.done)
			}
		}()
	}
}

func runTask(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.Errorf(core.KindCompress, "compression device", "task panicked: %v", r)
		}
	}()
	if err := t(); err != nil {
		core.LogError("compression task failed: %s", err)
		return core.NewError(core.KindCompress, "compression device", err)
	}
	return nil
}

// Submit queues t and returns its future. Submitting to a shut down device
// yields a future that already failed.
func (d *Device) Submit(t Task) *Future {
	f := &Future{done: make(chan struct{})}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		f.err = core.NewError(core.KindCompress, "compression device", ErrDeviceClosed)
		close(f.done)
		return f
	}
	d.jobQueue <- job{task: t, future: f}
	return f
}

// Shutdown drains the queue and stops the workers.
func (d *Device) Shutdown() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobQueue)
	d.mu.Unlock()
	d.wg.Wait()
	return nil
}
