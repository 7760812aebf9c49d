package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/apierror"
)

// Result is what a finished job publishes
type Result struct {
	ReportID    string
	DownloadURL string
}

// Func performs the work of one job
type Func func(ctx context.Context, job Job) (Result, error)

// WorkerConfig configuration for the job worker
type WorkerConfig struct {
	MaxConcurrent int           `json:"max_concurrent"`
	QueueSize     int           `json:"queue_size"`
	JobTimeout    time.Duration `json:"job_timeout"`
}

// DefaultWorkerConfig returns default configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxConcurrent: 2,
		QueueSize:     32,
		JobTimeout:    5 * time.Minute,
	}
}

type task struct {
	job Job
	fn  Func
}

// Worker runs queued jobs with a concurrency limit
type Worker struct {
	store  *Store
	config WorkerConfig
	logger *zap.Logger

	queue  chan task
	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWorker creates a worker and starts its dispatch loop
func NewWorker(store *Store, config WorkerConfig, logger *zap.Logger) *Worker {
	def := DefaultWorkerConfig()
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = def.MaxConcurrent
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:  store,
		config: config,
		logger: logger,
		queue:  make(chan task, config.QueueSize),
		sem:    make(chan struct{}, config.MaxConcurrent),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.dispatch()
	return w
}

// Submit creates a pending job and queues fn for it. A full queue returns
// apierror.ErrBusy without creating the job.
func (w *Worker) Submit(businessName string, fn Func) (Job, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Job{}, fmt.Errorf("worker shut down: %w", apierror.ErrBusy)
	}
	if len(w.queue) == cap(w.queue) {
		return Job{}, fmt.Errorf("job queue full: %w", apierror.ErrBusy)
	}

	job := w.store.Create(businessName)
	w.queue <- task{job: job, fn: fn}
	w.logger.Info("Job queued", zap.String("job_id", job.ID), zap.String("business", businessName))
	return job, nil
}

func (w *Worker) dispatch() {
	defer close(w.done)
	for t := range w.queue {
		w.sem <- struct{}{} // Acquire semaphore
		w.wg.Add(1)
		go func(t task) {
			defer func() {
				<-w.sem // Release semaphore
				w.wg.Done()
			}()
			w.run(t)
		}(t)
	}
	w.wg.Wait()
}

func (w *Worker) run(t task) {
	job, err := w.store.Transition(t.job.ID, StatusProcessing, nil)
	if err != nil {
		w.logger.Error("Failed to start job", zap.String("job_id", t.job.ID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.config.JobTimeout)
	defer cancel()

	start := time.Now()
	result, err := w.execute(ctx, t.fn, job)
	if err != nil {
		w.logger.Error("Job failed",
			zap.String("job_id", job.ID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		if _, terr := w.store.Transition(job.ID, StatusFailed, func(j *Job) { j.Error = err.Error() }); terr != nil {
			w.logger.Error("Failed to record job failure", zap.String("job_id", job.ID), zap.Error(terr))
		}
		return
	}

	_, err = w.store.Transition(job.ID, StatusCompleted, func(j *Job) {
		j.ReportID = result.ReportID
		j.DownloadURL = result.DownloadURL
	})
	if err != nil {
		w.logger.Error("Failed to record job completion", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	w.logger.Info("Job completed",
		zap.String("job_id", job.ID),
		zap.String("report_id", result.ReportID),
		zap.Duration("duration", time.Since(start)))
}

func (w *Worker) execute(ctx context.Context, fn Func, job Job) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx, job)
}

// Shutdown stops accepting jobs and waits for queued ones to finish. When
// ctx ends first, running jobs are cancelled.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.done
		return ctx.Err()
	}
}
