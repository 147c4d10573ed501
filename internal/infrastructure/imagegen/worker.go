package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deckgen-api/internal/workflow/node"
	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
)

const (
	ProviderWorker = "worker"

	defaultWorkerTimeout = 60 * time.Second
	maxWorkerBodyBytes   = 32 << 20
)

// WorkerOptions 备用图片服务参数
type WorkerOptions struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	// MaxBodyBytes 响应体上限，超出即判定失败
	MaxBodyBytes int64
}

// WorkerProvider POST {"prompt": ...}，响应体即图片字节
type WorkerProvider struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	maxBody  int64
}

type workerRequest struct {
	Prompt string `json:"prompt"`
}

func NewWorkerProvider(opts WorkerOptions) (*WorkerProvider, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("image worker endpoint is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultWorkerTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = maxWorkerBodyBytes
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &WorkerProvider{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		timeout:  opts.Timeout,
		client:   client,
		maxBody:  opts.MaxBodyBytes,
	}, nil
}

func (p *WorkerProvider) Name() string { return ProviderWorker }

func (p *WorkerProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(workerRequest{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("marshal worker request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("x-api-key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if node.IsTimeout(err) {
			return nil, &apperrors.ProviderTimeoutError{Provider: ProviderWorker, Timeout: p.timeout, Err: err}
		}
		return nil, &apperrors.ProviderError{Provider: ProviderWorker, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
	if err != nil {
		if node.IsTimeout(err) {
			return nil, &apperrors.ProviderTimeoutError{Provider: ProviderWorker, Timeout: p.timeout, Err: err}
		}
		return nil, &apperrors.ProviderError{Provider: ProviderWorker, StatusCode: resp.StatusCode, Retryable: true, Err: err}
	}
	if int64(len(data)) > p.maxBody {
		return nil, &apperrors.ProviderError{
			Provider:   ProviderWorker,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response body exceeds %d bytes", p.maxBody),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn(ctx, "image worker returned non-2xx",
			"status", resp.StatusCode,
			"body", logger.Truncate(string(data)),
		)
		return nil, &apperrors.ProviderHTTPError{Provider: ProviderWorker, StatusCode: resp.StatusCode, Body: string(data)}
	}
	if len(data) == 0 {
		return nil, &apperrors.EmptyResponseError{Provider: ProviderWorker}
	}
	return data, nil
}
