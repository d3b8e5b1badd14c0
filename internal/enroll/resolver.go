package enroll

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var lessonIDPattern = regexp.MustCompile(`/lessons/(\d+)`)

// ExtractLessonID pulls the numeric lesson id out of a lesson locator.
// Purely syntactic; no network access.
func ExtractLessonID(locator string) (string, error) {
	match := lessonIDPattern.FindStringSubmatch(locator)
	if match == nil {
		return "", &ResolutionError{Locator: locator}
	}
	return match[1], nil
}

// Lesson is the fetched description of the enrollment target. The raw
// payload is kept for diagnostics.
type Lesson struct {
	ID             string
	EnrollmentFrom time.Time
	Raw            []byte
}

// Resolver fetches lesson metadata from the resource provider.
type Resolver struct {
	cfg    Config
	logger *slog.Logger
	client *http.Client
}

func NewResolver(cfg Config, logger *slog.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// FetchLesson issues an authenticated read of the lesson and parses the
// enrollment opening time. The opening time is the single source of truth
// for the deadline; when it is absent or unparsable the job is aborted.
func (r *Resolver) FetchLesson(ctx context.Context, token Token, lessonID string) (*Lesson, error) {
	endpoint := fmt.Sprintf("%s/Lessons/%s", strings.TrimRight(r.cfg.APIBaseURL, "/"), lessonID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+string(token))
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	r.logger.Debug("Fetching lesson metadata",
		slog.String("lesson_id", lessonID),
		slog.String("endpoint", endpoint),
	)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.Error("Lesson fetch returned non-success status",
			slog.String("lesson_id", lessonID),
			slog.Int("status", resp.StatusCode),
			slog.String("body", truncate(string(body), 512)),
		)
		return nil, &FetchError{StatusCode: resp.StatusCode}
	}

	var payload struct {
		Data struct {
			EnrollmentFrom string `json:"enrollmentFrom"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{Err: fmt.Errorf("decoding lesson payload: %w", err)}
	}

	if payload.Data.EnrollmentFrom == "" {
		return nil, &MetadataError{Field: "enrollmentFrom"}
	}

	enrollmentFrom, err := time.Parse(time.RFC3339, payload.Data.EnrollmentFrom)
	if err != nil {
		return nil, &MetadataError{Field: "enrollmentFrom", Err: err}
	}

	r.logger.Info("Lesson metadata fetched",
		slog.String("lesson_id", lessonID),
		slog.Time("enrollment_from", enrollmentFrom),
	)

	return &Lesson{
		ID:             lessonID,
		EnrollmentFrom: enrollmentFrom,
		Raw:            body,
	}, nil
}

// truncate bounds provider payloads before they reach logs or job rows.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
