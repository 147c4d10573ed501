package node

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "deckgen-api/pkg/errors"
)

func TestDecodeJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"plain", `{"title":"T","outlines":["a"]}`},
		{"fenced", "```json\n{\"title\":\"T\",\"outlines\":[\"a\"]}\n```"},
		{"chatter", "Sure! Here it is:\n{\"title\":\"T\",\"outlines\":[\"a\"]}\nHope this helps."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := DecodeJSONObject(tc.in)
			require.NoError(t, err)
			assert.Equal(t, "T", doc["title"])
		})
	}
}

func TestDecodeJSONObject_Malformed(t *testing.T) {
	for _, in := range []string{"", "not json", `{"title": "T",`, `["a","b"]`, `{"a":1} {"b":2}`} {
		_, err := DecodeJSONObject(in)
		assert.Error(t, err, in)
	}
}

func TestStatusCodeFromError(t *testing.T) {
	assert.Equal(t, 503, StatusCodeFromError(errors.New("error, status code: 503, status: 503 Service Unavailable, message: overloaded")))
	assert.Equal(t, 429, StatusCodeFromError(errors.New("Error 429, Message: quota, Status: RESOURCE_EXHAUSTED")))
	assert.Equal(t, 0, StatusCodeFromError(errors.New("connection reset by peer")))
}

func TestClassifyProviderError(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		err := ClassifyProviderError("gemini", fmt.Errorf("call: %w", context.DeadlineExceeded))
		var timeout *apperrors.ProviderTimeoutError
		require.True(t, errors.As(err, &timeout))
		assert.True(t, apperrors.IsRetryable(err))
	})
	t.Run("5xx retryable", func(t *testing.T) {
		err := ClassifyProviderError("gemini", errors.New("error, status code: 502, message: bad gateway"))
		var pe *apperrors.ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, 502, pe.StatusCode)
		assert.True(t, pe.Retryable)
	})
	t.Run("4xx not retryable", func(t *testing.T) {
		err := ClassifyProviderError("gemini", errors.New("error, status code: 401, message: bad key"))
		assert.False(t, apperrors.IsRetryable(err))
	})
	t.Run("canceled passthrough", func(t *testing.T) {
		err := ClassifyProviderError("gemini", context.Canceled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, apperrors.IsRetryable(err))
	})
}

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	assert.True(t, IsResponseFormatUnsupportedError(errors.New("Invalid JSON payload: unknown field response_format")))
	assert.False(t, IsResponseFormatUnsupportedError(errors.New("status code: 500")))
}
