package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRegisterValidates(t *testing.T) {
	s := NewScheduler(testLogger())
	run := func(ctx context.Context) error { return nil }

	assert.Error(t, s.Register(Job{Interval: time.Second, Run: run}))
	assert.Error(t, s.Register(Job{Name: "scan", Run: run}))
	require.NoError(t, s.Register(Job{Name: "scan", Interval: time.Second, Run: run}))
	assert.Error(t, s.Register(Job{Name: "scan", Interval: time.Second, Run: run}))
}

func TestSchedulerRunsAndRearms(t *testing.T) {
	s := NewScheduler(testLogger())
	var runs atomic.Int32
	require.NoError(t, s.Register(Job{
		Name:     "orders",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "orders", status[0].Name)
	assert.GreaterOrEqual(t, status[0].Runs, 3)
	assert.NotNil(t, status[0].LastRun)
}

func TestSchedulerInitialDelay(t *testing.T) {
	s := NewScheduler(testLogger())
	var runs atomic.Int32
	require.NoError(t, s.Register(Job{
		Name:         "stock",
		Interval:     time.Hour,
		InitialDelay: time.Hour,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	s.Start()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	assert.Zero(t, runs.Load())
}

func TestSchedulerTriggerRejectsOverlap(t *testing.T) {
	s := NewScheduler(testLogger())
	release := make(chan struct{})
	require.NoError(t, s.Register(Job{
		Name:     "scan",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			<-release
			return errors.New("supplier down")
		},
	}))

	require.NoError(t, s.Trigger("scan"))
	require.Eventually(t, func() bool { return s.Status()[0].Running }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Trigger("scan"), ErrJobRunning)
	assert.ErrorIs(t, s.Trigger("unknown"), ErrJobNotFound)

	close(release)
	require.Eventually(t, func() bool { return s.Status()[0].Runs == 1 }, time.Second, 5*time.Millisecond)
	status := s.Status()[0]
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.Failures)
	assert.Equal(t, "supplier down", status.LastError)
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerRecoversPanics(t *testing.T) {
	s := NewScheduler(testLogger())
	require.NoError(t, s.Register(Job{
		Name:     "disputes",
		Interval: time.Hour,
		Run:      func(ctx context.Context) error { panic("boom") },
	}))

	require.NoError(t, s.Trigger("disputes"))
	require.Eventually(t, func() bool { return s.Status()[0].Runs == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, s.Status()[0].LastError, "boom")
	require.NoError(t, s.Stop(context.Background()))
}
