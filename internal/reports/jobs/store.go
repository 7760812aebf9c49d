package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/apierror"
	"ai-opportunities/report-portal/report-portal-backend/pkg/workflows"
)

// Status of an asynchronous report job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var lifecycle = workflows.New(map[string][]string{
	string(StatusPending):    {string(StatusProcessing), string(StatusFailed)},
	string(StatusProcessing): {string(StatusCompleted), string(StatusFailed)},
	string(StatusCompleted):  {},
	string(StatusFailed):     {},
})

// Job tracks one report generation
type Job struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	BusinessName string     `json:"businessName"`
	ReportID     string     `json:"reportId,omitempty"`
	DownloadURL  string     `json:"downloadUrl,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Terminal reports whether the job has finished
func (j Job) Terminal() bool {
	return lifecycle.IsTerminal(string(j.Status))
}

// Store keeps jobs in memory; finished jobs are dropped after the TTL
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	ttl    time.Duration
	now    func() time.Time
	cron   *cron.Cron
	logger *zap.Logger
}

// NewStore creates an empty job store
func NewStore(ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		jobs:   make(map[string]*Job),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Create registers a pending job
func (s *Store) Create(businessName string) Job {
	now := s.now().UTC()
	job := &Job{
		ID:           uuid.NewString(),
		Status:       StatusPending,
		BusinessName: businessName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return *job
}

// Get returns a copy of the job
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, apierror.ErrNotFound)
	}
	return *job, nil
}

// Transition moves a job to a new status and applies update while the
// store is locked
func (s *Store) Transition(id string, to Status, update func(*Job)) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, apierror.ErrNotFound)
	}
	if err := lifecycle.Transition(string(job.Status), string(to)); err != nil {
		return *job, fmt.Errorf("job %s: %w", id, err)
	}

	now := s.now().UTC()
	job.Status = to
	job.UpdatedAt = now
	if lifecycle.IsTerminal(string(to)) {
		job.CompletedAt = &now
	}
	if update != nil {
		update(job)
	}
	return *job, nil
}

// Reap drops finished jobs older than the TTL and returns how many went
func (s *Store) Reap() int {
	cutoff := s.now().UTC().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if job.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked jobs
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Start schedules Reap on a cron spec with a seconds field, e.g. "0 */5 * * * *"
func (s *Store) Start(spec string) error {
	s.cron = cron.New(cron.WithSeconds())
	_, err := s.cron.AddFunc(spec, func() {
		if n := s.Reap(); n > 0 {
			s.logger.Debug("Reaped finished jobs", zap.Int("count", n))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reap schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("Job reaper started", zap.String("schedule", spec), zap.Duration("ttl", s.ttl))
	return nil
}

// Stop stops the reaper and waits for a running reap
func (s *Store) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
