package enroll

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// SubmitResult is the provider's definitive answer to one registration
// request. Anything other than 201 Created is a rejection; the raw status
// and body are kept for diagnostics.
type SubmitResult struct {
	StatusCode int
	Body       string
	Created    bool
}

// Executor fires the single time-critical registration request. It never
// retries: a rejection is a final answer for this attempt, and a transport
// failure leaves the outcome ambiguous, so re-firing could double-enroll.
type Executor struct {
	cfg    Config
	logger *slog.Logger
	client *http.Client
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// Submit issues the authenticated enrollment POST.
func (x *Executor) Submit(ctx context.Context, token Token, lessonID string) (*SubmitResult, error) {
	endpoint := fmt.Sprintf("%s/Lessons/%s/Enrollment", strings.TrimRight(x.cfg.APIBaseURL, "/"), lessonID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader("{}"))
	if err != nil {
		return nil, &SubmitError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+string(token))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", x.cfg.UserAgent)

	x.logger.Info("Submitting enrollment",
		slog.String("lesson_id", lessonID),
		slog.String("endpoint", endpoint),
	)

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, &SubmitError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SubmitError{Err: err}
	}

	result := &SubmitResult{
		StatusCode: resp.StatusCode,
		Body:       truncate(string(body), 1024),
		Created:    resp.StatusCode == http.StatusCreated,
	}

	if result.Created {
		x.logger.Info("Enrollment accepted by provider",
			slog.String("lesson_id", lessonID),
		)
	} else {
		x.logger.Warn("Enrollment rejected by provider",
			slog.String("lesson_id", lessonID),
			slog.Int("status", result.StatusCode),
			slog.String("body", result.Body),
		)
	}

	return result, nil
}
