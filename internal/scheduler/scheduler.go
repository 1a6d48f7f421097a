// Package scheduler wires up the cron jobs that keep the stores tidy and
// periodically run the parser and the matching engine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrUnknownJob is returned for a name no job is registered under.
	ErrUnknownJob = errors.New("unknown job")
	// ErrStopped is returned by Trigger once Stop has been called.
	ErrStopped = errors.New("scheduler stopped")
)

// Job is one named unit of scheduled work.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// JobStatus reports the last run of a job.
type JobStatus struct {
	Name    string        `json:"name"`
	Every   string        `json:"every"`
	Runs    int           `json:"runs"`
	LastRun time.Time     `json:"last_run,omitempty"`
	Took    time.Duration `json:"took_ns"`
	LastErr string        `json:"last_error,omitempty"`
	Running bool          `json:"running"`
}

// Scheduler wraps robfig/cron. Jobs never overlap: each is skipped while
// its previous run is still going, and all runs share one lock.
type Scheduler struct {
	cron *cron.Cron
	jobs []Job

	run     sync.Mutex // held for the duration of a job
	mu      sync.Mutex // guards status and stopped
	status  map[string]*JobStatus
	stopped bool
	bg      sync.WaitGroup // startup pass and triggered runs
}

// New creates a Scheduler for jobs.
func New(jobs ...Job) *Scheduler {
	s := &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.DefaultLogger)),
		jobs:   jobs,
		status: make(map[string]*JobStatus, len(jobs)),
	}
	for _, j := range jobs {
		s.status[j.Name] = &JobStatus{Name: j.Name, Every: j.Every.String()}
	}
	return s
}

// Start registers every job and starts the scheduler. Every job also runs
// once immediately, in registration order, so the stores are fresh without
// waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	chain := cron.NewChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))
	for _, j := range s.jobs {
		spec := fmt.Sprintf("@every %s", j.Every)
		if _, err := s.cron.AddJob(spec, chain.Then(cron.FuncJob(func() { _ = s.execute(ctx, j) }))); err != nil {
			return fmt.Errorf("cron.AddJob %s: %w", j.Name, err)
		}
		log.Printf("[scheduler] Job %s registered — spec: %s", j.Name, spec)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started with %d job(s)", len(s.jobs))

	// Run immediately on startup (non-blocking)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		for _, j := range s.jobs {
			if ctx.Err() != nil {
				return
			}
			_ = s.execute(ctx, j)
		}
	}()
	return nil
}

// Stop shuts the scheduler down and waits for running jobs, including
// triggered ones, to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.bg.Wait()
	log.Println("[scheduler] Cron stopped")
}

func (s *Scheduler) job(name string) (Job, error) {
	for _, j := range s.jobs {
		if j.Name == name {
			return j, nil
		}
	}
	return Job{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
}

// Trigger starts the named job in the background and returns at once. Stop
// waits for it.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	j, err := s.job(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		_ = s.execute(ctx, j)
	}()
	return nil
}

// Status returns the run history of every job in registration order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *s.status[j.Name])
	}
	return out
}

func (s *Scheduler) execute(ctx context.Context, j Job) error {
	s.run.Lock()
	defer s.run.Unlock()

	start := time.Now()
	s.update(j.Name, func(st *JobStatus) { st.Running = true })
	log.Printf("[scheduler] Job %s started", j.Name)

	err := runRecovered(ctx, j)

	took := time.Since(start)
	s.update(j.Name, func(st *JobStatus) {
		st.Running = false
		st.Runs++
		st.LastRun = start
		st.Took = took
		st.LastErr = ""
		if err != nil {
			st.LastErr = err.Error()
		}
	})
	if err != nil {
		log.Printf("[scheduler] Job %s failed after %s: %v", j.Name, took, err)
		return err
	}
	log.Printf("[scheduler] Job %s complete in %s", j.Name, took)
	return nil
}

// runRecovered turns a panic in j into an error.
func runRecovered(ctx context.Context, j Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Name, r)
		}
	}()
	return j.Run(ctx)
}

func (s *Scheduler) update(name string, fn func(*JobStatus)) {
	s.mu.Lock()
	fn(s.status[name])
	s.mu.Unlock()
}
