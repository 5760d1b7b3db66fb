package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is a recurring unit of work. The next run is armed only after the
// previous one returns, so slow runs push the schedule back instead of
// piling up.
type Job struct {
	Name         string
	Interval     time.Duration
	InitialDelay time.Duration
	Run          func(ctx context.Context) error
}

// JobStatus is the observable state of a registered job
type JobStatus struct {
	Name         string        `json:"name"`
	Interval     time.Duration `json:"interval"`
	Running      bool          `json:"running"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastRun      *time.Time    `json:"lastRun,omitempty"`
	LastDuration time.Duration `json:"lastDuration"`
	LastError    string        `json:"lastError,omitempty"`
	NextRun      *time.Time    `json:"nextRun,omitempty"`
}

type jobState struct {
	job    Job
	runMu  sync.Mutex // held for the duration of a run
	status JobStatus
}

// Scheduler runs each registered job in its own goroutine
type Scheduler struct {
	logger *logrus.Entry

	mu        sync.Mutex
	jobs      map[string]*jobState
	isRunning bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates an idle scheduler
func NewScheduler(logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger.WithField("component", "scheduler"),
		jobs:   make(map[string]*jobState),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job. Jobs registered after Start begin immediately.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run function")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	js := &jobState{job: job, status: JobStatus{Name: job.Name, Interval: job.Interval}}
	s.jobs[job.Name] = js
	if s.isRunning {
		s.wg.Add(1)
		go s.loop(js)
	}
	return nil
}

// Start launches the job loops
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	for _, js := range s.jobs {
		s.wg.Add(1)
		go s.loop(js)
	}
	s.logger.WithField("jobs", len(s.jobs)).Info("Scheduler started")
}

// Stop cancels running jobs and waits for them to return, or for ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs a job out of cycle in the background. It fails with
// ErrJobRunning when the job is already executing.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	js, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("scheduler stopped")
	}
	if !js.runMu.TryLock() {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer js.runMu.Unlock()
		s.execute(js, "manual")
	}()
	return nil
}

// Status lists every job sorted by name
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, js := range s.jobs {
		out = append(out, js.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) loop(js *jobState) {
	defer s.wg.Done()

	delay := js.job.InitialDelay
	for {
		next := time.Now().Add(delay)
		s.mu.Lock()
		js.status.NextRun = &next
		s.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		js.runMu.Lock()
		s.execute(js, "scheduled")
		js.runMu.Unlock()

		delay = js.job.Interval
	}
}

// execute runs the job once. The caller holds js.runMu.
func (s *Scheduler) execute(js *jobState, trigger string) {
	log := s.logger.WithFields(logrus.Fields{"job": js.job.Name, "trigger": trigger})

	start := time.Now()
	s.mu.Lock()
	js.status.Running = true
	s.mu.Unlock()

	err := s.safeRun(js.job)
	elapsed := time.Since(start)

	s.mu.Lock()
	js.status.Running = false
	js.status.Runs++
	js.status.LastRun = &start
	js.status.LastDuration = elapsed
	js.status.LastError = ""
	if err != nil {
		js.status.Failures++
		js.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		log.WithError(err).WithField("duration", elapsed.String()).Error("Job failed")
		return
	}
	log.WithField("duration", elapsed.String()).Info("Job completed")
}

func (s *Scheduler) safeRun(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s: %v", job.Name, r)
		}
	}()
	return job.Run(s.ctx)
}
