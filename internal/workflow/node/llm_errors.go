package node

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"

	apperrors "deckgen-api/pkg/errors"
)

// statusPattern 匹配 SDK 错误信息中的 HTTP 状态码
// go-openai: "error, status code: 503, ..."; genai: "Error 429, Message: ..."
var statusPattern = regexp.MustCompile(`(?i)(?:status code:?\s*|error\s+)(\d{3})\b`)

func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "response_format"):
		return true
	case strings.Contains(msg, "json_schema"):
		return true
	case strings.Contains(msg, "unknown parameter") && strings.Contains(msg, "response"):
		return true
	case strings.Contains(msg, "response_schema"):
		return true
	default:
		return false
	}
}

// StatusCodeFromError 尽力从错误信息中提取 HTTP 状态码，失败返回 0
func StatusCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	m := statusPattern.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil || code < 100 || code > 599 {
		return 0
	}
	return code
}

// IsTimeout 判断是否为超时类错误
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout")
}

// ClassifyProviderError 将 SDK / 传输层错误归类为 ProviderTimeoutError 或 ProviderError
// 4xx（429 除外）不可重试；5xx、429、无状态码的网络错误可重试
func ClassifyProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var (
		timeoutErr  *apperrors.ProviderTimeoutError
		providerErr *apperrors.ProviderError
	)
	if errors.As(err, &timeoutErr) || errors.As(err, &providerErr) {
		return err
	}
	if IsTimeout(err) {
		return &apperrors.ProviderTimeoutError{Provider: provider, Err: err}
	}

	status := StatusCodeFromError(err)
	retryable := status == 0 || status == 429 || status >= 500
	return &apperrors.ProviderError{
		Provider:   provider,
		StatusCode: status,
		Retryable:  retryable,
		Err:        err,
	}
}
