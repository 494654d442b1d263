package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrNoHandler        = errors.New("no handler registered for job type")
	ErrServiceStopped   = errors.New("job service stopped")
	defaultWorkerCount  = 4
	progressChannelSize = 10
)

type Job struct {
	ID         string
	Type       string
	Name       string
	Status     JobStatus
	Progress   int
	Message    string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Metadata   map[string]any
	Logger     *slog.Logger
	LogPath    string
	cancelFunc context.CancelFunc
	cancelled  bool
	err        error
	done       chan struct{}
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

type JobProgress struct {
	JobID    string
	Progress int
	Message  string
}

type TaskHandler interface {
	Execute(ctx context.Context, job *Job, progressChan chan<- JobProgress) error
	Cancel(jobID string) error
}

// Task defines the specific logic for a job type.
type Task interface {
	MetadataKeys() []string
	Execute(ctx context.Context, job *Job, progressUpdater func(int, string)) (map[string]any, error)
	// Cleanup always runs after Execute, with the error Execute returned.
	Cleanup(job *Job, execErr error) error
}

// BaseTaskHandler provides a base implementation for TaskHandler.
type BaseTaskHandler struct {
	Task Task
}

// NewBaseTaskHandler creates a new BaseTaskHandler.
func NewBaseTaskHandler(task Task) *BaseTaskHandler {
	return &BaseTaskHandler{Task: task}
}

// Execute runs the job using the provided task.
func (h *BaseTaskHandler) Execute(ctx context.Context, job *Job, progressChan chan<- JobProgress) (err error) {
	job.Logger.Info("Starting job", "name", job.Name)

	defer func() {
		if cleanupErr := h.Task.Cleanup(job, err); cleanupErr != nil {
			job.Logger.Error("Error during job cleanup", "error", cleanupErr)
		}
	}()

	for _, key := range h.Task.MetadataKeys() {
		if _, ok := job.Metadata[key]; !ok {
			err = fmt.Errorf("missing %s in job metadata", key)
			job.Logger.Error("Error: " + err.Error())
			return err
		}
	}

	progressUpdater := func(percentage int, status string) {
		progressChan <- JobProgress{
			JobID:    job.ID,
			Progress: percentage,
			Message:  status,
		}
		job.Logger.Info("Progress", "percentage", percentage, "status", status)
	}

	stats, err := h.Task.Execute(ctx, job, progressUpdater)
	if stats != nil {
		if job.Metadata == nil {
			job.Metadata = make(map[string]any)
		}
		maps.Copy(job.Metadata, stats)
	}
	if err != nil {
		job.Logger.Error("Error during job execution", "error", err)
		return err
	}

	job.Logger.Info("Job finished successfully", "name", job.Name)
	return nil
}

// Cancel stops a running job.
// The actual cancellation is handled by the context in the job service.
func (h *BaseTaskHandler) Cancel(jobID string) error {
	return nil
}

// Discard runs the task's Cleanup for a job that was dropped before it started.
func (h *BaseTaskHandler) Discard(job *Job, reason error) {
	if err := h.Task.Cleanup(job, reason); err != nil {
		job.Logger.Error("Error during job cleanup", "error", err)
	}
}

// discarder is implemented by handlers that must hear about jobs that never ran.
type discarder interface {
	Discard(job *Job, reason error)
}

// JobService defines the interface for job management that other services will use
type JobService interface {
	StartJob(jobType string, name string, metadata map[string]any) (string, error)
	Wait(ctx context.Context, jobID string) error
	GetJob(jobID string) (*Job, bool)
	CancelJob(jobID string) error
	GetJobs() []*Job
}

// Service runs jobs on a bounded pool of workers. Jobs beyond the pool size
// wait in FIFO order.
type Service struct {
	jobs     map[string]*Job
	handlers map[string]TaskHandler
	pending  []*Job
	running  int
	workers  int
	stopped  bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
	config   *config.Jobs
}

func NewService(cfg *config.Jobs) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	return &Service{
		jobs:     make(map[string]*Job),
		handlers: make(map[string]TaskHandler),
		workers:  workers,
		config:   cfg,
	}
}

func (s *Service) RegisterHandler(jobType string, handler TaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = handler
}

func (s *Service) StartJob(jobType string, name string, metadata map[string]any) (string, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Name:      name,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata:  metadata,
		done:      make(chan struct{}),
	}
	if err := s.attachLogger(job); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return "", ErrServiceStopped
	}
	if _, exists := s.handlers[jobType]; !exists {
		return "", fmt.Errorf("%w: %s", ErrNoHandler, jobType)
	}
	s.jobs[job.ID] = job
	if s.running < s.workers {
		s.launchLocked(job)
	} else {
		s.pending = append(s.pending, job)
		slog.Debug("Job queued, all workers busy", "jobID", job.ID, "type", jobType, "pending", len(s.pending))
	}
	return job.ID, nil
}

// attachLogger gives the job its own log file, or a discard logger when job logs are disabled.
func (s *Service) attachLogger(job *Job) error {
	if !s.config.Log {
		job.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}
	logDir := s.config.LogPath
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logName := fmt.Sprintf("%s-%s.log", time.Now().Format("2006-01-02"), job.ID)
	logPath := filepath.Join(logDir, logName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	job.Logger = slog.New(slog.NewTextHandler(logFile, nil))
	job.LogPath = logPath
	return nil
}

// launchLocked starts job on a worker. s.mu must be held.
func (s *Service) launchLocked(job *Job) {
	ctx, cancel := context.WithCancel(context.Background())
	job.cancelFunc = cancel
	job.Status = JobStatusRunning
	job.Message = "Starting..."
	job.UpdatedAt = time.Now()
	s.running++
	s.wg.Add(1)
	go s.executeJob(ctx, job)
}

func (s *Service) executeJob(ctx context.Context, job *Job) {
	defer s.wg.Done()

	s.mu.RLock()
	handler := s.handlers[job.Type]
	s.mu.RUnlock()

	progressChan := make(chan JobProgress, progressChannelSize)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for progress := range progressChan {
			s.UpdateJobProgress(progress.JobID, progress.Progress, progress.Message)
		}
	}()
	err := handler.Execute(ctx, job, progressChan)
	close(progressChan)
	<-progressDone
	job.cancelFunc()

	s.mu.Lock()
	switch {
	case err == nil:
		// A task may finish its work even after a cancel request.
		s.finishLocked(job, JobStatusCompleted, "Job completed successfully", nil)
	case errors.Is(err, context.Canceled) || job.cancelled:
		s.finishLocked(job, JobStatusCancelled, "Job cancelled", err)
	default:
		s.finishLocked(job, JobStatusFailed, err.Error(), err)
	}
	s.running--
	s.startNextPendingLocked()
	s.mu.Unlock()
}

// finishLocked moves job into a terminal state and wakes its waiters. s.mu must be held.
func (s *Service) finishLocked(job *Job, status JobStatus, message string, err error) {
	job.Status = status
	job.Message = message
	job.UpdatedAt = time.Now()
	job.err = err
	if err != nil {
		job.Error = err.Error()
	}
	if status == JobStatusCompleted {
		job.Progress = 100
	}
	close(job.done)
}

func (s *Service) startNextPendingLocked() {
	if s.stopped || len(s.pending) == 0 || s.running >= s.workers {
		return
	}
	next := s.pending[0]
	s.pending = s.pending[1:]
	s.launchLocked(next)
}

func (s *Service) UpdateJobProgress(jobID string, progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, exists := s.jobs[jobID]; exists {
		// Don't update progress if job is in a terminal state
		if job.Status == JobStatusCompleted || job.Status == JobStatusFailed || job.Status == JobStatusCancelled {
			return
		}
		job.Progress = progress
		job.Message = message
		job.UpdatedAt = time.Now()
	}
}

// Wait blocks until the job finishes or ctx is done. It returns the job's error.
func (s *Service) Wait(ctx context.Context, jobID string) error {
	job, exists := s.GetJob(jobID)
	if !exists {
		return ErrJobNotFound
	}
	select {
	case <-job.done:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return job.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelJob cancels a pending job before it starts, or signals a running one through its context.
func (s *Service) CancelJob(jobID string) error {
	s.mu.Lock()
	job, exists := s.jobs[jobID]
	if !exists {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	if job.Status == JobStatusPending {
		if job.cancelled {
			s.mu.Unlock()
			return nil
		}
		for i, p := range s.pending {
			if p.ID == jobID {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				break
			}
		}
		job.cancelled = true
		handler := s.handlers[job.Type]
		s.mu.Unlock()

		// Waiters are woken only after the task has cleaned up.
		s.discard(handler, job, context.Canceled)
		s.mu.Lock()
		s.finishLocked(job, JobStatusCancelled, "Job cancelled", context.Canceled)
		s.mu.Unlock()
		return nil
	}
	defer s.mu.Unlock()
	switch job.Status {
	case JobStatusRunning:
		job.cancelled = true
		job.Message = "Cancelling..."
		job.UpdatedAt = time.Now()
		if job.cancelFunc != nil {
			job.cancelFunc()
		}
		if handler, exists := s.handlers[job.Type]; exists {
			return handler.Cancel(jobID)
		}
		return nil
	default:
		return nil
	}
}

func (s *Service) discard(handler TaskHandler, job *Job, reason error) {
	if d, ok := handler.(discarder); ok {
		d.Discard(job, reason)
	}
}

func (s *Service) GetJob(jobID string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[jobID]
	return job, exists
}

func (s *Service) GetJobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// ActiveJobs returns copies of the pending and running jobs, oldest first.
func (s *Service) ActiveJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := make([]Job, 0, s.running+len(s.pending))
	for _, job := range s.jobs {
		if job.Status == JobStatusPending || job.Status == JobStatusRunning {
			active = append(active, *job)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active
}

// Running returns the number of jobs currently executing.
func (s *Service) Running() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Service) CleanupOldJobs(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > maxAge &&
			(job.Status == JobStatusCompleted || job.Status == JobStatusFailed || job.Status == JobStatusCancelled) {
			if job.LogPath != "" {
				os.Remove(job.LogPath)
			}
			delete(s.jobs, id)
		}
	}
}

// Shutdown stops accepting jobs, cancels pending ones and waits for running jobs to return.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	dropped := s.pending
	for _, job := range dropped {
		job.cancelled = true
	}
	s.pending = nil
	handlers := maps.Clone(s.handlers)
	s.mu.Unlock()
	for _, job := range dropped {
		s.discard(handlers[job.Type], job, ErrServiceStopped)
	}
	s.mu.Lock()
	for _, job := range dropped {
		s.finishLocked(job, JobStatusCancelled, "Job cancelled", ErrServiceStopped)
	}
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
