// Package errors 提供统一的错误定义
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 资源错误 (3xxx)
	CodeJobNotFound   ErrorCode = "3001"
	CodeAssetNotFound ErrorCode = "3004"
	CodeInvalidAsset  ErrorCode = "3005"

	// 业务错误 (4xxx)
	CodeGenerationFailed  ErrorCode = "4001"
	CodeValidationFailed  ErrorCode = "4002"
	CodeMalformedResponse ErrorCode = "4003"
	CodeImageFailed       ErrorCode = "4004"
	CodeLLMCallFailed     ErrorCode = "4005"

	// 外部服务错误 (5xxx)
	CodeCacheError       ErrorCode = "5002"
	CodeStorageError     ErrorCode = "5004"
	CodeLLMProviderError ErrorCode = "5005"
	CodeProviderTimeout  ErrorCode = "5006"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeInvalidAsset:
		return http.StatusBadRequest
	case CodeNotFound, CodeJobNotFound, CodeAssetNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeMalformedResponse, CodeValidationFailed, CodeImageFailed, CodeLLMProviderError, CodeLLMCallFailed:
		return http.StatusBadGateway
	case CodeProviderTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrJobNotFound 任务不存在或已过期
var ErrJobNotFound = New(CodeJobNotFound, "job not found")
