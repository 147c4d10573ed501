package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// InvalidInputError 调用方输入非法（空提示词、不支持的枚举值、非图片字节等）
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

// MalformedResponseError 模型未返回可解析的 JSON，Raw 仅用于诊断日志
type MalformedResponseError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed model response: %v", e.Stage, e.Err)
	}
	return e.Stage + ": malformed model response"
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// OutlineValidationError 大纲文档结构不满足约定
type OutlineValidationError struct {
	Rule string
}

func (e *OutlineValidationError) Error() string {
	return "outline validation: " + e.Rule
}

// SlideValidationError 单页幻灯片违反规则；SlideIndex 为 0 基下标，-1 表示文档级
type SlideValidationError struct {
	SlideIndex int
	Rule       string
}

func (e *SlideValidationError) Error() string {
	if e.SlideIndex < 0 {
		return "detail validation: " + e.Rule
	}
	return fmt.Sprintf("detail validation: slide %d: %s", e.SlideIndex, e.Rule)
}

// ValidationError 汇总一次校验发现的全部问题
type ValidationError struct {
	Stage  string
	Issues []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, issue.Error())
	}
	return fmt.Sprintf("%s validation failed: %s", e.Stage, strings.Join(msgs, "; "))
}

// Unwrap 使 errors.As 能定位到具体的 SlideValidationError / OutlineValidationError
func (e *ValidationError) Unwrap() []error { return e.Issues }

// ProviderError 上游服务传输层失败
type ProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ProviderTimeoutError 上游调用超时
type ProviderTimeoutError struct {
	Provider string
	Timeout  time.Duration
	Err      error
}

func (e *ProviderTimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("provider %s: timed out after %s", e.Provider, e.Timeout)
	}
	return fmt.Sprintf("provider %s: timed out", e.Provider)
}

func (e *ProviderTimeoutError) Unwrap() error { return e.Err }

// ProviderHTTPError 上游返回非 2xx；Body 只写入日志
type ProviderHTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderHTTPError) Error() string {
	return fmt.Sprintf("provider %s: unexpected status %d", e.Provider, e.StatusCode)
}

// EmptyResponseError 上游返回 2xx 但内容为空
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("provider %s: empty response", e.Provider)
}

// ImageGenerationFailed 图片生成的统一失败类型，Cause 为最后一个尝试的提供方的错误
type ImageGenerationFailed struct {
	SlideID  string
	Provider string
	Cause    error
}

func (e *ImageGenerationFailed) Error() string {
	prefix := "image generation failed"
	if e.SlideID != "" {
		prefix += " for " + e.SlideID
	}
	if e.Cause == nil {
		return prefix
	}
	return fmt.Sprintf("%s: %v", prefix, e.Cause)
}

func (e *ImageGenerationFailed) Unwrap() error { return e.Cause }

// InvalidAssetNameError 资源名包含路径分隔符或上级目录标记
type InvalidAssetNameError struct {
	Name   string
	Reason string
}

func (e *InvalidAssetNameError) Error() string {
	return fmt.Sprintf("invalid asset name %q: %s", e.Name, e.Reason)
}

// AssetNotFoundError 资源不存在
type AssetNotFoundError struct {
	Name string
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("Image '%s' not found", e.Name)
}

// IsRetryable 判断阶段级错误是否值得整体重试
func IsRetryable(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return false
	}

	var (
		invalid   *InvalidInputError
		malformed *MalformedResponseError
		outline   *OutlineValidationError
		slide     *SlideValidationError
		timeout   *ProviderTimeoutError
		provider  *ProviderError
	)
	switch {
	case stderrors.As(err, &invalid):
		return false
	case stderrors.As(err, &malformed),
		stderrors.As(err, &outline),
		stderrors.As(err, &slide),
		stderrors.As(err, &timeout):
		return true
	case stderrors.As(err, &provider):
		return provider.Retryable
	}
	return false
}

// ToAppError 将领域错误映射为对外的 AppError，Message 不包含上游原始内容
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var (
		app       *AppError
		invalid   *InvalidInputError
		assetName *InvalidAssetNameError
		notFound  *AssetNotFoundError
		malformed *MalformedResponseError
		outline   *OutlineValidationError
		slide     *SlideValidationError
		timeout   *ProviderTimeoutError
		image     *ImageGenerationFailed
		provider  *ProviderError
		httpErr   *ProviderHTTPError
	)
	switch {
	case stderrors.As(err, &app):
		return app
	case stderrors.As(err, &image):
		return Wrap(err, CodeImageFailed, "image generation failed")
	case stderrors.As(err, &invalid):
		return Wrap(err, CodeInvalidParam, invalid.Error())
	case stderrors.As(err, &assetName):
		return Wrap(err, CodeInvalidAsset, "invalid image name")
	case stderrors.As(err, &notFound):
		return Wrap(err, CodeAssetNotFound, notFound.Error())
	case stderrors.As(err, &timeout):
		return Wrap(err, CodeProviderTimeout, "upstream provider timed out")
	case stderrors.As(err, &malformed):
		return Wrap(err, CodeMalformedResponse, "model returned a malformed response")
	case stderrors.As(err, &outline), stderrors.As(err, &slide):
		return Wrap(err, CodeValidationFailed, "model response failed validation")
	case stderrors.As(err, &provider), stderrors.As(err, &httpErr):
		return Wrap(err, CodeLLMProviderError, "upstream provider error")
	case stderrors.Is(err, context.DeadlineExceeded):
		return Wrap(err, CodeProviderTimeout, "request timed out")
	}
	return Wrap(err, CodeInternalError, "internal server error")
}
