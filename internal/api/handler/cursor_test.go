package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jschwabe/autoenroll/internal/api/storage"
)

func TestEnrollmentCursor_RoundTrip(t *testing.T) {
	in := &storage.EnrollmentCursor{
		CreatedAt: time.Date(2026, 3, 14, 17, 59, 0, 123456789, time.UTC),
		JobID:     "0b7f8d7e-5a52-44a0-9f57-9e9f2a2b7c11",
	}

	encoded := EncodeEnrollmentCursor(in)
	out, err := DecodeEnrollmentCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.JobID, out.JobID)
}

func TestDecodeEnrollmentCursor_Empty(t *testing.T) {
	out, err := DecodeEnrollmentCursor("")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDecodeEnrollmentCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "!!!not-base64!!!"},
		{name: "missing separator", cursor: base64.StdEncoding.EncodeToString([]byte("12345"))},
		{name: "non numeric timestamp", cursor: base64.StdEncoding.EncodeToString([]byte("abc|job-1"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodeEnrollmentCursor(tt.cursor)
			assert.Error(t, err)
			assert.Nil(t, out)
		})
	}
}
