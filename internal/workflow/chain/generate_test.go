package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "deckgen-api/pkg/errors"
)

func outlineInput() *GenerateInput {
	temp := float32(0)
	tokens := 1024
	return &GenerateInput{
		Stage:       "outline",
		Provider:    "gemini",
		Messages:    []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("user")},
		SchemaName:  "outline",
		Schema:      OutlineSchema(),
		Temperature: &temp,
		MaxTokens:   &tokens,
	}
}

func TestTextClient_Generate(t *testing.T) {
	m := &fakeChatModel{responses: []string{"```json\n{\"title\":\"Distributed Systems 101\",\"outlines\":[\"a\",\"b\"]}\n```"}}
	client := NewTextClient(&fakeFactory{model: m})

	doc, err := client.Generate(context.Background(), outlineInput())
	require.NoError(t, err)
	assert.Equal(t, "Distributed Systems 101", doc["title"])
	assert.Equal(t, 1, m.calls)
	assert.Equal(t, 3, m.lastOpts)
}

func TestTextClient_MalformedKeepsRaw(t *testing.T) {
	m := &fakeChatModel{responses: []string{"I cannot help with that."}}
	client := NewTextClient(&fakeFactory{model: m})

	_, err := client.Generate(context.Background(), outlineInput())
	var malformed *apperrors.MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "I cannot help with that.", malformed.Raw)
	assert.Equal(t, "outline", malformed.Stage)
}

func TestTextClient_ResponseFormatFallback(t *testing.T) {
	m := &fakeChatModel{
		errs:      []error{errors.New("error, status code: 400, message: Unknown name \"response_format\"")},
		responses: []string{"", `{"title":"T","outlines":["a"]}`},
	}
	client := NewTextClient(&fakeFactory{model: m})

	doc, err := client.Generate(context.Background(), outlineInput())
	require.NoError(t, err)
	assert.Equal(t, "T", doc["title"])
	assert.Equal(t, 2, m.calls)
	assert.Equal(t, 2, m.lastOpts)
}

func TestTextClient_ProviderErrors(t *testing.T) {
	t.Run("5xx retryable", func(t *testing.T) {
		m := &fakeChatModel{errs: []error{errors.New("error, status code: 503, message: overloaded")}}
		_, err := NewTextClient(&fakeFactory{model: m}).Generate(context.Background(), outlineInput())
		var pe *apperrors.ProviderError
		require.True(t, errors.As(err, &pe))
		assert.True(t, pe.Retryable)
	})
	t.Run("4xx not retryable", func(t *testing.T) {
		m := &fakeChatModel{errs: []error{errors.New("error, status code: 403, message: denied")}}
		_, err := NewTextClient(&fakeFactory{model: m}).Generate(context.Background(), outlineInput())
		assert.False(t, apperrors.IsRetryable(err))
	})
	t.Run("factory failure", func(t *testing.T) {
		_, err := NewTextClient(&fakeFactory{err: errors.New("no api key")}).Generate(context.Background(), outlineInput())
		require.Error(t, err)
		assert.False(t, apperrors.IsRetryable(err))
	})
}
