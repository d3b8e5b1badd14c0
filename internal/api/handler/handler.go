package handler

import (
	"context"
	"log/slog"

	"github.com/jschwabe/autoenroll/internal/api/model"
	"github.com/jschwabe/autoenroll/internal/api/storage"
	"github.com/jschwabe/autoenroll/shared/postgresql"
	"github.com/jschwabe/autoenroll/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
}

// enrollmentStore is the storage surface the handlers need.
type enrollmentStore interface {
	CreateEnrollment(ctx context.Context, e *model.Enrollment) error
	GetEnrollmentByID(ctx context.Context, jobID string) (*model.Enrollment, error)
	GetEnrollmentByIdempotencyKey(ctx context.Context, key string) (*model.Enrollment, error)
	ListEnrollments(ctx context.Context, filter storage.EnrollmentFilter) ([]model.Enrollment, error)
}

// jobPublisher hands a freshly accepted job to the work queue.
type jobPublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// EnrollmentHandler handles enrollment-related HTTP requests
type EnrollmentHandler struct {
	logger    *slog.Logger
	storage   enrollmentStore
	publisher jobPublisher
}

// NewEnrollmentHandler creates a new EnrollmentHandler instance
func NewEnrollmentHandler(deps *Dependencies) *EnrollmentHandler {
	return &EnrollmentHandler{
		logger:    deps.Logger,
		storage:   storage.NewStorage(deps.DBClient),
		publisher: deps.RabbitClient,
	}
}
