// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
)

// ErrorResponse 错误响应结构，error 为可对外展示的信息
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Success 返回 200
func Success[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, data)
}

// Accepted 返回 202
func Accepted[T any](c *gin.Context, data T) {
	c.JSON(http.StatusAccepted, data)
}

// Error 返回错误响应
func Error(c *gin.Context, httpCode int, message string, code apperrors.ErrorCode) {
	c.JSON(httpCode, ErrorResponse{
		Error:   message,
		Code:    string(code),
		TraceID: c.GetString("trace_id"),
	})
}

// FromError 将任意错误映射为状态码与公开信息；5xx 的底层原因只写日志
func FromError(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", err,
			"path", c.FullPath(),
			"code", string(appErr.Code),
		)
	}
	Error(c, status, appErr.Message, appErr.Code)
}

// BadRequest 返回 400 错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message, apperrors.CodeInvalidParam)
}

// NotFound 返回 404 错误
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, apperrors.CodeNotFound)
}

// InternalError 返回 500 错误
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message, apperrors.CodeInternalError)
}

// ServiceUnavailable 返回 503 错误
func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, message, apperrors.CodeServiceUnavailable)
}
