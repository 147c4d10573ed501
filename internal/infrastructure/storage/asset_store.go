// Package storage 提供生成图片的本地文件存储
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"deckgen-api/internal/domain/entity"
	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
	"deckgen-api/pkg/metrics"
)

const (
	// ServePath 读取已生成图片的路由
	ServePath = "/generate/get-generated-image"

	maxNameLen = 255
	tempPrefix = ".tmp-"
)

// AssetStore 所有图片平铺在同一个根目录下，用户输入不会产生子目录
type AssetStore struct {
	root          string
	publicBaseURL string
}

// NewAssetStore 创建存储并确保根目录存在
func NewAssetStore(root, publicBaseURL string) (*AssetStore, error) {
	root = filepath.Clean(strings.TrimSpace(root))
	if root == "" || root == "." {
		return nil, fmt.Errorf("asset root dir is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset root %s: %w", root, err)
	}
	return &AssetStore{
		root:          root,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}, nil
}

// Root 返回根目录
func (s *AssetStore) Root() string {
	return s.root
}

// ValidateName 在任何文件系统访问之前拒绝可能逃逸根目录的名称
func ValidateName(name string) error {
	reject := func(reason string) error {
		return &apperrors.InvalidAssetNameError{Name: name, Reason: reason}
	}
	switch {
	case strings.TrimSpace(name) == "":
		return reject("name is empty")
	case len(name) > maxNameLen:
		return reject("name is too long")
	case strings.ContainsAny(name, `/\`):
		return reject("name contains a path separator")
	case strings.Contains(name, ".."):
		return reject("name contains a parent directory token")
	case strings.ContainsRune(name, 0):
		return reject("name contains a NUL byte")
	case strings.HasPrefix(name, "."):
		return reject("name must not start with a dot")
	case filepath.VolumeName(name) != "" || strings.Contains(name, ":"):
		return reject("name contains a volume or drive marker")
	}
	return nil
}

// Save 校验图片字节后原子写入：先写临时文件再 rename，并发写同名不会互相破坏
// 名称无扩展名时按探测到的 MIME 类型补全
func (s *AssetStore) Save(ctx context.Context, data []byte, name string) (*entity.GeneratedImage, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &apperrors.InvalidInputError{Field: "image", Reason: "image data is empty"}
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, &apperrors.InvalidInputError{Field: "image", Reason: fmt.Sprintf("unsupported content type %s", mime.String())}
	}
	if filepath.Ext(name) == "" {
		name += mime.Extension()
	}

	if err := s.writeAtomic(name, data); err != nil {
		metrics.AssetWritesTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "asset write failed", err, "name", name)
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to store image")
	}
	metrics.AssetWritesTotal.WithLabelValues("success").Inc()
	metrics.AssetBytesWritten.Add(float64(len(data)))

	return &entity.GeneratedImage{
		Name:     name,
		Path:     filepath.ToSlash(filepath.Join(s.root, name)),
		URL:      s.URLFor(name),
		MIMEType: mime.String(),
		Size:     int64(len(data)),
	}, nil
}

func (s *AssetStore) writeAtomic(name string, data []byte) (err error) {
	tmp, err := os.CreateTemp(s.root, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, filepath.Join(s.root, name)); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}

// Resolve 打开已存储的图片，调用方负责 Close
func (s *AssetStore) Resolve(_ context.Context, name string) (*os.File, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &apperrors.AssetNotFoundError{Name: name}
		}
		return nil, fmt.Errorf("failed to open asset %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat asset %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, &apperrors.AssetNotFoundError{Name: name}
	}
	return f, nil
}

// URLFor 返回图片的对外访问地址
func (s *AssetStore) URLFor(name string) string {
	return fmt.Sprintf("%s%s?image_name=%s", s.publicBaseURL, ServePath, url.QueryEscape(name))
}

// HealthCheck 检查根目录可用，供就绪探针使用
func (s *AssetStore) HealthCheck(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.root)
	}
	return nil
}
