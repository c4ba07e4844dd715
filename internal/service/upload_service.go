package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
	"github.com/metspa/woo-ai-customer-service/pkg/storage"
)

// MaxUploadSize 是聊天图片的大小上限（5MB）。
const MaxUploadSize = 5 << 20

// allowedImageTypes 是允许上传的图片 MIME 类型。
// 类型以文件内容嗅探结果为准，不信任客户端声明。
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadService 处理聊天中的图片上传。
type UploadService interface {
	// UploadImage 校验并保存图片，返回可访问的 URL。
	// 校验失败返回 *UploadRejectedError。
	UploadImage(ctx context.Context, sessionID string, header *multipart.FileHeader) (string, error)
}

type uploadService struct {
	cfg config.MinIOConfig
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(cfg config.MinIOConfig) UploadService {
	return &uploadService{cfg: cfg}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)

// UploadImage 校验大小与 MIME 类型后上传到对象存储。
func (s *uploadService) UploadImage(ctx context.Context, sessionID string, header *multipart.FileHeader) (string, error) {
	if header.Size > MaxUploadSize {
		return "", &UploadRejectedError{Message: "Image must be smaller than 5MB"}
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	// 嗅探真实的内容类型
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read uploaded file: %w", err)
	}
	contentType := http.DetectContentType(head[:n])
	if _, ok := allowedImageTypes[contentType]; !ok {
		return "", &UploadRejectedError{Message: "Only JPEG, PNG, GIF and WebP images are allowed"}
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind uploaded file: %w", err)
	}

	objectName := fmt.Sprintf("chat-%s-%d-%s",
		sessionID, time.Now().Unix(), sanitizeFileName(header.Filename))

	url, err := storage.PutObject(ctx, s.cfg, objectName, contentType, file, header.Size)
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	log.Infow("聊天图片已上传", "session_id", sessionID, "object", objectName, "size", header.Size)
	return url, nil
}

// sanitizeFileName 只保留安全字符，防止对象名注入路径。
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "image"
	}
	return name
}
