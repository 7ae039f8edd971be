package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hoveln/framesync/pkg/scheduler"
	"github.com/stretchr/testify/assert"
)

func TestScheduler_Queue(t *testing.T) {
	job := scheduler.Schedule(context.Background(), scheduler.RunFunc(func(_ context.Context) error {
		return nil
	}), 100*time.Millisecond, nil)

	assert.Eventually(t, func() bool {
		done, err := job.Result()
		return done && err == nil
	}, time.Second, 10*time.Millisecond)

	job = scheduler.Schedule(context.Background(), scheduler.RunFunc(func(_ context.Context) error {
		return errors.New("failed")
	}), 100*time.Millisecond, nil)

	assert.Eventually(t, func() bool {
		done, err := job.Result()
		return done && err != nil && !errors.Is(err, scheduler.ErrCanceled)
	}, time.Second, 10*time.Millisecond)
}

func TestScheduler_Cancel(t *testing.T) {
	ran := make(chan struct{})
	job := scheduler.Schedule(context.Background(), scheduler.RunFunc(func(_ context.Context) error {
		close(ran)
		return nil
	}), time.Hour, nil)

	job.Cancel()
	completed, err := job.Result()
	assert.True(t, completed)
	assert.ErrorIs(t, err, scheduler.ErrCanceled)

	select {
	case <-ran:
		t.Fatal("canceled job ran")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_Notification(t *testing.T) {
	done := make(chan struct{}, 1)
	job := scheduler.Schedule(context.Background(), scheduler.RunFunc(func(_ context.Context) error {
		return nil
	}), 10*time.Millisecond, done)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("no completion notification")
	}
	completed, err := job.Result()
	assert.True(t, completed)
	assert.NoError(t, err)
	assert.False(t, job.Due().IsZero())
}
