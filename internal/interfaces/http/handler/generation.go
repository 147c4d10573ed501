// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"deckgen-api/internal/application/presentation"
	"deckgen-api/internal/domain/entity"
	"deckgen-api/internal/interfaces/http/dto"
	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
)

// legacyImageName 兼容旧版单图接口的固定文件名
const legacyImageName = "image.jpg"

// PresentationService 演示文稿生成编排
type PresentationService interface {
	Generate(ctx context.Context, req entity.GenerationRequest, progress presentation.ProgressFunc) (*entity.PresentationResult, error)
	GenerateOutline(ctx context.Context, req entity.GenerationRequest) (*entity.Outline, []string, error)
	GenerateImage(ctx context.Context, prompt, name string) (*entity.GeneratedImage, error)
}

// AssetResolver 按名称打开已生成图片
type AssetResolver interface {
	Resolve(ctx context.Context, name string) (*os.File, error)
}

// GenerationOptions 处理器行为开关
type GenerationOptions struct {
	DefaultSlideCount    int
	DefaultLanguage      string
	LegacyOutlineStatus  bool
	LegacyFixedImageName bool
}

// GenerationHandler /generate 下的同步接口
type GenerationHandler struct {
	service PresentationService
	assets  AssetResolver
	opts    GenerationOptions
	newName func() string
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(service PresentationService, assets AssetResolver, opts GenerationOptions) *GenerationHandler {
	return &GenerationHandler{
		service: service,
		assets:  assets,
		opts:    opts,
		newName: uuid.NewString,
	}
}

func (h *GenerationHandler) baseRequest() entity.GenerationRequest {
	return entity.DefaultGenerationRequest(h.opts.DefaultSlideCount, h.opts.DefaultLanguage)
}

// GenerateOutlines 生成大纲
// @Summary 生成演示文稿大纲
// @Tags Generate
// @Produce json
// @Param user_prompt query string true "主题"
// @Success 200 {object} dto.OutlineResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /generate/outlines [post]
func (h *GenerationHandler) GenerateOutlines(c *gin.Context) {
	ctx := c.Request.Context()
	prompt := dto.BindUserPrompt(c)

	req, err := entity.NewGenerationRequest(h.baseRequest(), entity.RequestPatch{UserPrompt: &prompt})
	if err == nil {
		var outline *entity.Outline
		outline, _, err = h.service.GenerateOutline(ctx, req)
		if err == nil {
			dto.Success(c, dto.OutlineResponse{Outline: outline})
			return
		}
	}

	if h.opts.LegacyOutlineStatus {
		appErr := apperrors.ToAppError(err)
		logger.Warn(ctx, "outline generation failed", "error", err.Error())
		c.JSON(http.StatusOK, gin.H{"error": appErr.Message})
		return
	}
	dto.FromError(c, err)
}

// GenerateImage 生成单张图片
// @Summary 根据提示词生成图片
// @Tags Generate
// @Produce json
// @Param user_prompt query string true "图片提示词"
// @Success 200 {object} dto.ImageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /generate/image [post]
func (h *GenerationHandler) GenerateImage(c *gin.Context) {
	name := h.newName()
	if h.opts.LegacyFixedImageName {
		name = legacyImageName
	}

	img, err := h.service.GenerateImage(c.Request.Context(), dto.BindUserPrompt(c), name)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToImageResponse(img))
}

// GetGeneratedImage 读取已生成图片
// @Summary 获取已生成图片
// @Tags Generate
// @Produce octet-stream
// @Param image_name query string true "图片文件名"
// @Success 200 {file} binary
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /generate/get-generated-image [get]
func (h *GenerationHandler) GetGeneratedImage(c *gin.Context) {
	ctx := c.Request.Context()
	name := dto.BindImageName(c)

	f, err := h.assets.Resolve(ctx, name)
	if err != nil {
		var (
			invalid  *apperrors.InvalidAssetNameError
			notFound *apperrors.AssetNotFoundError
		)
		switch {
		case errors.As(err, &invalid):
			logger.Warn(ctx, "rejected asset name", "reason", invalid.Reason)
			dto.Error(c, http.StatusBadRequest, "invalid image name", apperrors.CodeInvalidAsset)
		case errors.As(err, &notFound):
			dto.Error(c, http.StatusNotFound, notFound.Error(), apperrors.CodeAssetNotFound)
		default:
			logger.Error(ctx, "failed to open generated image", err, "image_name", name)
			dto.InternalError(c, "failed to read image")
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		logger.Error(ctx, "failed to stat generated image", err, "image_name", name)
		dto.InternalError(c, "failed to read image")
		return
	}
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

// GeneratePresentation 同步生成完整演示文稿
// @Summary 生成完整演示文稿（含配图）
// @Tags Generate
// @Accept json
// @Produce json
// @Param body body dto.GenerationRequestBody true "生成参数"
// @Success 200 {object} dto.PresentationResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Failure 504 {object} dto.ErrorResponse
// @Router /generate/presentation [post]
func (h *GenerationHandler) GeneratePresentation(c *gin.Context) {
	patch, err := dto.BindGenerationRequest(c)
	if err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}
	req, err := entity.NewGenerationRequest(h.baseRequest(), patch)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	result, err := h.service.Generate(c.Request.Context(), req, nil)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, result)
}
