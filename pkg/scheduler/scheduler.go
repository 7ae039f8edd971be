// Package scheduler runs a task after a delay. The returned Job can be canceled
// at any time without waiting for it: Cancel only cancels the job's context, so
// it is safe to call while holding locks the task itself may need.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Schedule runs task after waitTime. If done is not nil, it receives a (non-blocking)
// notification when the job finishes, fails or is canceled.
func Schedule(ctx context.Context, task Task, waitTime time.Duration, done chan<- struct{}) *Job {
	subCtx, cancel := context.WithCancel(ctx)
	j := &Job{
		task:   task,
		state:  stateScheduled,
		due:    time.Now().Add(waitTime),
		cancel: cancel,
		done:   done,
	}
	go j.run(subCtx, waitTime)
	return j
}

// Task is the interface for anything that can be scheduled.
type Task interface {
	Run(ctx context.Context) error
}

// RunFunc adapts a plain function to the Task interface.
type RunFunc func(ctx context.Context) error

// Run calls f.
func (f RunFunc) Run(ctx context.Context) error { return f(ctx) }

// Job is a scheduled task.
type Job struct {
	task   Task
	state  state
	due    time.Time
	cancel context.CancelFunc
	done   chan<- struct{}
	err    error
	lock   sync.RWMutex
}

func (j *Job) run(ctx context.Context, waitTime time.Duration) {
	timer := time.NewTimer(waitTime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		j.setState(stateCanceled, nil)
	case <-timer.C:
		err := j.task.Run(ctx)
		s := stateCompleted
		if err != nil {
			s = stateFailed
		}
		j.setState(s, err)
	}
	j.notify()
}

// Cancel stops the job. It does not wait for the job's goroutine to exit.
func (j *Job) Cancel() {
	j.cancel()
	j.lock.Lock()
	if !j.state.done() {
		j.state = stateCanceled
	}
	j.lock.Unlock()
}

// Due returns the time the job is scheduled to fire.
func (j *Job) Due() time.Time {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.due
}

// Result reports whether the job has finished and, if it failed, why.
// A canceled job reports ErrCanceled.
func (j *Job) Result() (bool, error) {
	j.lock.RLock()
	defer j.lock.RUnlock()
	if !j.state.done() {
		return false, nil
	}
	if j.state == stateCanceled {
		return true, ErrCanceled
	}
	return true, j.err
}

func (j *Job) setState(state state, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.state.done() {
		return
	}
	j.state = state
	j.err = err
}

func (j *Job) notify() {
	if j.done == nil {
		return
	}
	select {
	case j.done <- struct{}{}:
	default:
	}
}

type state int

const (
	stateScheduled state = iota
	stateCanceled
	stateCompleted
	stateFailed
)

func (s state) done() bool {
	return s == stateCompleted || s == stateFailed || s == stateCanceled
}
