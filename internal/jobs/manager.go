package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabforest/internal/errors"
	"tabforest/internal/logging"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Func is the body of a background job. It should report through job and
// stop early when ctx is cancelled.
type Func func(ctx context.Context, job *Job) (any, error)

type Job struct {
	ID          string
	Type        string
	Status      JobStatus
	Progress    float64
	StartTime   time.Time
	EndTime     *time.Time
	Error       error
	Result      any
	Description string
	Logs        []string
	cancelFunc  func()
	done        chan struct{}
	mu          sync.RWMutex
}

type Manager struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	logger *zap.SugaredLogger
}

func NewManager(logger *zap.SugaredLogger) *Manager {
	return &Manager{
		jobs:   make(map[string]*Job),
		logger: logging.OrNop(logger),
	}
}

func (m *Manager) CreateJob(jobType, description string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Status:      JobPending,
		StartTime:   time.Now(),
		Description: description,
		Logs:        []string{},
		done:        make(chan struct{}),
	}

	m.jobs[job.ID] = job
	return job
}

// Submit creates a job and runs fn on its own goroutine.
func (m *Manager) Submit(ctx context.Context, jobType, description string, fn Func) *Job {
	job := m.CreateJob(jobType, description)
	ctx, cancel := context.WithCancel(ctx)
	job.SetCancelFunc(cancel)
	job.SetStatus(JobRunning)

	m.logger.Infow("job started", "job", job.ID, "type", jobType)

	go func() {
		defer close(job.done)
		defer cancel()

		result, err := fn(ctx, job)
		switch {
		case job.GetStatus() == JobCancelled:
			m.logger.Infow("job cancelled", "job", job.ID)
		case err != nil:
			job.SetError(err)
			m.logger.Warnw("job failed", "job", job.ID, "error", err)
		default:
			job.SetResult(result)
			job.SetProgress(1)
			job.SetStatus(JobCompleted)
			m.logger.Infow("job completed", "job", job.ID, "elapsed", time.Since(job.StartTime))
		}
	}()

	return job
}

func (m *Manager) GetJob(jobID string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	return job, exists
}

// ListJobs returns jobs oldest first.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
	return jobs
}

func (m *Manager) CancelJob(jobID string) error {
	job, exists := m.GetJob(jobID)
	if !exists {
		return errors.NotFound(fmt.Sprintf("job %s", jobID))
	}

	job.mu.Lock()
	defer job.mu.Unlock()

	if job.Status != JobRunning {
		return fmt.Errorf("job %s is not running", jobID)
	}

	if job.cancelFunc != nil {
		job.cancelFunc()
		job.Status = JobCancelled
		now := time.Now()
		job.EndTime = &now
	}

	return nil
}

// Wait blocks until the job has finished or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	if j.done == nil {
		return nil
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	if status == JobCompleted || status == JobFailed || status == JobCancelled {
		now := time.Now()
		j.EndTime = &now
	}
}

func (j *Job) SetProgress(progress float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress = progress
}

func (j *Job) AddLog(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	timestamp := time.Now().Format("15:04:05")
	j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", timestamp, message))
}

func (j *Job) SetError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = err
	j.Status = JobFailed
	now := time.Now()
	j.EndTime = &now
}

// Publish runs fn unless the job has been cancelled, and reports whether it
// ran. CancelJob cannot interleave with fn.
func (j *Job) Publish(fn func()) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == JobCancelled {
		return false
	}
	fn()
	return true
}

func (j *Job) SetResult(result any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = result
}

func (j *Job) SetCancelFunc(cancelFunc func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelFunc = cancelFunc
}

func (j *Job) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

func (j *Job) GetProgress() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Progress
}

func (j *Job) GetResult() (any, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Result, j.Error
}

func (j *Job) GetLogs() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	logs := make([]string, len(j.Logs))
	copy(logs, j.Logs)
	return logs
}
