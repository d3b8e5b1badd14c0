package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jschwabe/autoenroll/internal/enroll"
	"github.com/jschwabe/autoenroll/internal/worker/domain"
	"github.com/jschwabe/autoenroll/internal/worker/storage"
	"github.com/jschwabe/autoenroll/shared/postgresql"
	"github.com/jschwabe/autoenroll/shared/rabbitmq"
)

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	DBClient      *postgresql.Client
	RabbitClient  *rabbitmq.Client
	Provider      enroll.Config
	Concurrency   int
	JobTimeout    time.Duration
	PrefetchCount int
}

// jobStore is the slice of the job store the processor needs.
type jobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	MarkOutcome(ctx context.Context, jobID, status string, result bool, message string) error
	ScheduleRetry(ctx context.Context, jobID, message string) error
}

// engineRunner runs one enrollment attempt end to end.
type engineRunner interface {
	Run(ctx context.Context, logger *slog.Logger, creds enroll.Credentials, locator string) (*enroll.Outcome, error)
}

// delayedPublisher re-queues a job message after the retry delay.
type delayedPublisher interface {
	PublishDelayed(ctx context.Context, body []byte, contentType string) error
}

// Worker consumes job ids from the queue and runs the enrollment engine
// on a pool of goroutines. Each job gets its own execution context; a job
// waiting hours for its deadline occupies one goroutine and nothing else.
type Worker struct {
	logger       *slog.Logger
	rabbitClient *rabbitmq.Client

	store      jobStore
	runner     engineRunner
	retryQueue delayedPublisher

	workerID      string
	concurrency   int
	jobTimeout    time.Duration
	prefetchCount int

	jobsChan chan *domain.JobMessage
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		store:         storage.NewStorage(cfg.DBClient.GetDB(), cfg.Logger),
		runner:        enroll.NewEngine(cfg.Provider),
		retryQueue:    cfg.RabbitClient,
		workerID:      "worker-" + uuid.New().String()[:8],
		concurrency:   cfg.Concurrency,
		jobTimeout:    cfg.JobTimeout,
		prefetchCount: cfg.PrefetchCount,
		jobsChan:      make(chan *domain.JobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and processing jobs. It blocks until the context
// is canceled or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker, waiting for in-flight jobs.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
