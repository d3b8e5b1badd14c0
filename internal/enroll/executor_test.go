package enroll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Submit_Created(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Lessons/12345/Enrollment", r.URL.Path)
		assert.Equal(t, "Bearer tok-xyz", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"placeNumber":3}}`))
	}))
	defer srv.Close()

	executor := NewExecutor(Config{APIBaseURL: srv.URL}.withDefaults(), testLogger())

	result, err := executor.Submit(context.Background(), "tok-xyz", "12345")
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
}

func TestExecutor_Submit_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{
			name:   "capacity exhausted",
			status: http.StatusUnprocessableEntity,
			body:   `{"errors":["lesson is fully booked"]}`,
		},
		{
			name:   "already enrolled",
			status: http.StatusConflict,
			body:   `{"errors":["already enrolled"]}`,
		},
		{
			name:   "provider error",
			status: http.StatusInternalServerError,
			body:   "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			executor := NewExecutor(Config{APIBaseURL: srv.URL}.withDefaults(), testLogger())

			result, err := executor.Submit(context.Background(), "tok-xyz", "12345")

			// A rejection is a definitive answer, not an error.
			require.NoError(t, err)
			assert.False(t, result.Created)
			assert.Equal(t, tt.status, result.StatusCode)
			assert.Contains(t, result.Body, tt.body[:10])
		})
	}
}

func TestExecutor_Submit_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	executor := NewExecutor(Config{APIBaseURL: srv.URL}.withDefaults(), testLogger())

	_, err := executor.Submit(context.Background(), "tok-xyz", "12345")

	var submitErr *SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.False(t, Retryable(err), "an ambiguous submit must not be re-fired")
}
