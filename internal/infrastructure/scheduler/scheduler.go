// Package scheduler runs the periodic metering jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/telemetry"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of periodic work
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// JobStatus is the last known state of a registered job
type JobStatus struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Running      bool          `json:"running"`
	Runs         int           `json:"runs"`
	NextRun      *time.Time    `json:"next_run,omitempty"`
	LastRun      *time.Time    `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
}

// Config holds scheduler configuration
type Config struct {
	Enabled bool
	// JobTimeout bounds a single run (default: 30 minutes)
	JobTimeout time.Duration
	Location   *time.Location
	Clock      shared.Clock
	Metrics    *telemetry.MeteringMetrics
}

type registeredJob struct {
	job     Job
	entryID cron.EntryID

	mu     sync.Mutex
	status JobStatus
}

// Scheduler runs registered jobs on their cron schedules. A run that is still
// going when its next tick fires is skipped.
type Scheduler struct {
	config Config
	logger *zap.Logger
	cron   *cron.Cron
	jobs   map[string]*registeredJob
	order  []string

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// New creates a scheduler. Jobs are added with Register before Start.
func New(cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = shared.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config: cfg,
		logger: logger,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLogger{logger: logger}),
			cron.WithChain(cron.Recover(cronLogger{logger: logger})),
		),
		jobs: make(map[string]*registeredJob),
	}
}

// Register adds a job. The schedule uses the standard five field syntax.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("%w: job needs a name and a run function", ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("%w: job %q registered twice", ErrInvalidConfig, job.Name)
	}

	rj := &registeredJob{job: job, status: JobStatus{Name: job.Name, Schedule: job.Schedule}}
	id, err := s.cron.AddFunc(job.Schedule, func() { s.execute(rj, "cron") })
	if err != nil {
		return fmt.Errorf("%w: job %q schedule %q: %v", ErrInvalidConfig, job.Name, job.Schedule, err)
	}
	rj.entryID = id
	s.jobs[job.Name] = rj
	s.order = append(s.order, job.Name)
	return nil
}

// Start starts the cron loop. A disabled scheduler starts nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.cron.Start()
	s.isRunning = true

	for _, name := range s.order {
		rj := s.jobs[name]
		s.logger.Info("Job scheduled",
			zap.String("job", name),
			zap.String("schedule", rj.job.Schedule),
			zap.Time("next_run", s.cron.Entry(rj.entryID).Next),
		)
	}
	return nil
}

// Stop stops scheduling and cancels running jobs, waiting for them until ctx ends
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// Trigger runs a job now in the background
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	rj, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if rj.isRunning() {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRunning, name)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(rj, "manual")
	}()
	return nil
}

// Status lists the registered jobs in registration order
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		rj := s.jobs[name]
		rj.mu.Lock()
		st := rj.status
		rj.mu.Unlock()
		if s.isRunning {
			if next := s.cron.Entry(rj.entryID).Next; !next.IsZero() {
				st.NextRun = &next
			}
		}
		out = append(out, st)
	}
	return out
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (rj *registeredJob) isRunning() bool {
	rj.mu.Lock()
	defer rj.mu.Unlock()
	return rj.status.Running
}

func (s *Scheduler) execute(rj *registeredJob, trigger string) {
	rj.mu.Lock()
	if rj.status.Running {
		rj.mu.Unlock()
		s.logger.Warn("Skipping job run, previous run still active",
			zap.String("job", rj.job.Name), zap.String("trigger", trigger))
		return
	}
	rj.status.Running = true
	rj.mu.Unlock()

	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.config.JobTimeout)
	defer cancel()

	started := s.config.Clock()
	s.logger.Info("Job started", zap.String("job", rj.job.Name), zap.String("trigger", trigger))

	err := rj.job.Run(ctx)
	s.config.Metrics.ObserveJob(ctx, rj.job.Name, started)
	duration := s.config.Clock().Sub(started)

	rj.mu.Lock()
	rj.status.Running = false
	rj.status.Runs++
	rj.status.LastRun = &started
	rj.status.LastDuration = duration
	rj.status.LastError = ""
	if err != nil {
		rj.status.LastError = err.Error()
	}
	rj.mu.Unlock()

	if err != nil {
		s.logger.Error("Job failed",
			zap.String("job", rj.job.Name),
			zap.String("trigger", trigger),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Job completed",
		zap.String("job", rj.job.Name),
		zap.String("trigger", trigger),
		zap.Duration("duration", duration),
	)
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
