package dto

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"deckgen-api/internal/domain/entity"
)

// GenerationRequestBody 演示文稿生成请求体，未给出的字段取服务端默认值
type GenerationRequestBody = entity.RequestPatch

// BindGenerationRequest 绑定 JSON 请求体；空请求体视为无覆盖字段
// user_prompt 查询参数在请求体未给出时生效
func BindGenerationRequest(c *gin.Context) (entity.RequestPatch, error) {
	var body GenerationRequestBody
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			return body, err
		}
	}
	if body.UserPrompt == nil {
		if q, ok := c.GetQuery("user_prompt"); ok {
			body.UserPrompt = &q
		}
	}
	return body, nil
}

// BindUserPrompt 读取 user_prompt 查询参数
func BindUserPrompt(c *gin.Context) string {
	return strings.TrimSpace(c.Query("user_prompt"))
}

// BindImageName 读取 image_name 查询参数（不做 trim，原样交给存储层校验）
func BindImageName(c *gin.Context) string {
	return c.Query("image_name")
}

// BindJobID 从 URI 绑定任务 ID
func BindJobID(c *gin.Context) string {
	return c.Param("jid")
}
