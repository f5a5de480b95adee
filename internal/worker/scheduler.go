package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is a named unit of periodic work.
type Job struct {
	Name string
	Run  func(ctx context.Context)
}

// JobScheduler runs a list of jobs on a fixed schedule until its context is
// cancelled. Used for the optional cache sweep; lazy eviction already keeps
// the cache correct, the sweep only bounds memory.
type JobScheduler struct {
	Name   string
	Ticker *time.Ticker
	jobs   []Job
	mu     sync.RWMutex
}

func NewJobScheduler(name string, interval time.Duration) *JobScheduler {
	return &JobScheduler{
		Name:   name,
		Ticker: time.NewTicker(interval),
	}
}

func (s *JobScheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

func (s *JobScheduler) Run(ctx context.Context) {
	slog.Info("Scheduler running", "scheduler", s.Name)
	defer s.Ticker.Stop()

	for {
		select {
		case <-s.Ticker.C:
			s.runJobs(ctx)
		case <-ctx.Done():
			slog.Info("Scheduler shutting down", "scheduler", s.Name)
			return
		}
	}
}

func (s *JobScheduler) runJobs(ctx context.Context) {
	s.mu.RLock()
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.RUnlock()

	for _, job := range jobs {
		job.Run(ctx)
	}
}
