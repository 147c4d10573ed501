package dto

import (
	"deckgen-api/internal/domain/entity"
)

// OutlineResponse POST /generate/outlines
type OutlineResponse struct {
	Outline *entity.Outline `json:"outline"`
}

// ImageResponse POST /generate/image
type ImageResponse struct {
	FilePath string `json:"file_path"`
	FileURL  string `json:"file_url"`
}

// ToImageResponse 转换生成图片
func ToImageResponse(img *entity.GeneratedImage) *ImageResponse {
	if img == nil {
		return nil
	}
	return &ImageResponse{FilePath: img.Path, FileURL: img.URL}
}

// PresentationResponse POST /generate/presentation
type PresentationResponse = entity.PresentationResult
