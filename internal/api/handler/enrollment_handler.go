package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jschwabe/autoenroll/internal/api/domain"
	"github.com/jschwabe/autoenroll/internal/api/dto"
	"github.com/jschwabe/autoenroll/internal/api/model"
	"github.com/jschwabe/autoenroll/internal/api/storage"
	"github.com/jschwabe/autoenroll/internal/enroll"
)

const defaultMaxRetries = 3

// CreateEnrollment handles POST /api/v1/enrollments
// Accepts a new enrollment job and queues it for the worker fleet.
func (h *EnrollmentHandler) CreateEnrollment(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	// A locator without a lesson id can never enroll, reject before
	// anything is stored or queued
	if _, err := enroll.ExtractLessonID(req.LessonURL); err != nil {
		h.logger.Warn("Rejected unresolvable lesson_url",
			slog.String("lesson_url", req.LessonURL),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "lesson_url does not reference a lesson",
		})
		return
	}

	now := time.Now().UTC()
	job := model.Enrollment{
		JobID:          uuid.New().String(),
		IdempotencyKey: req.IdempotencyKey,
		UserID:         req.UserID,
		MemberID:       req.MemberID,
		Secret:         req.Password,
		LessonURL:      req.LessonURL,
		Status:         domain.JobStatusPending,
		MaxRetries:     defaultMaxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := h.storage.CreateEnrollment(c.Request.Context(), &job)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			// Replayed submission, return the job created the first time
			existing, lookupErr := h.storage.GetEnrollmentByIdempotencyKey(c.Request.Context(), req.IdempotencyKey)
			if lookupErr != nil {
				h.logger.Error("Failed to load enrollment for duplicate key",
					slog.String("idempotency_key", req.IdempotencyKey),
					slog.String("error", lookupErr.Error()),
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to create enrollment",
				})
				return
			}
			c.JSON(http.StatusOK, toEnrollmentDTO(existing))
			return
		}

		h.logger.Error("Failed to create enrollment", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create enrollment",
		})
		return
	}

	body, err := json.Marshal(map[string]string{"job_id": job.JobID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to queue enrollment",
		})
		return
	}

	if err := h.publisher.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish job message",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to queue enrollment",
		})
		return
	}

	h.logger.Info("Enrollment job accepted",
		slog.String("job_id", job.JobID),
		slog.String("user_id", job.UserID),
		slog.String("lesson_url", job.LessonURL),
	)

	c.JSON(http.StatusAccepted, toEnrollmentDTO(&job))
}

// GetEnrollment handles GET /api/v1/enrollments/:job_id
func (h *EnrollmentHandler) GetEnrollment(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetEnrollmentByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Enrollment not found",
			})
			return
		}
		h.logger.Error("Failed to get enrollment", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get enrollment",
		})
		return
	}

	c.JSON(http.StatusOK, toEnrollmentDTO(job))
}

// ListEnrollments handles GET /api/v1/enrollments
// Lists enrollment jobs with optional filtering and keyset pagination.
func (h *EnrollmentHandler) ListEnrollments(c *gin.Context) {
	var req dto.ListEnrollmentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeEnrollmentCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.EnrollmentFilter{
		UserID:   req.UserID,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	enrollments, err := h.storage.ListEnrollments(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list enrollments", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list enrollments",
		})
		return
	}

	hasMore := len(enrollments) > req.PageSize
	if hasMore {
		enrollments = enrollments[:req.PageSize]
	}

	items := make([]dto.EnrollmentDTO, len(enrollments))
	for i := range enrollments {
		items[i] = *toEnrollmentDTO(&enrollments[i])
	}

	var nextCursor string
	if hasMore {
		last := enrollments[len(enrollments)-1]
		nextCursor = EncodeEnrollmentCursor(&storage.EnrollmentCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListEnrollmentsResponse{
		Enrollments: items,
		NextCursor:  nextCursor,
	})
}

func toEnrollmentDTO(e *model.Enrollment) *dto.EnrollmentDTO {
	out := &dto.EnrollmentDTO{
		JobID:          e.JobID,
		IdempotencyKey: e.IdempotencyKey,
		UserID:         e.UserID,
		MemberID:       e.MemberID,
		LessonURL:      e.LessonURL,
		Status:         e.Status,
		RetryCount:     e.RetryCount,
		MaxRetries:     e.MaxRetries,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}

	if e.Result.Valid {
		v := e.Result.Bool
		out.Result = &v
	}
	if e.Message.Valid {
		out.Message = e.Message.String
	}
	if e.StartedAt.Valid {
		out.StartedAt = e.StartedAt.Time.Format(time.RFC3339)
	}
	if e.CompletedAt.Valid {
		out.CompletedAt = e.CompletedAt.Time.Format(time.RFC3339)
	}

	return out
}
