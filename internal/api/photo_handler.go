package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	clamd "github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"cvhub/internal/api/middleware"
	"cvhub/internal/cv"
	"cvhub/internal/database"
	"cvhub/internal/storage"
)

// PhotoHandler 处理简历照片的上传。
// 上传流程：大小上限 -> 病毒扫描 -> 魔数校验 -> 写入对象存储 -> 更新记录。
type PhotoHandler struct {
	store    *database.CVStore
	storage  *storage.Client
	scanner  *clamd.Clamd
	maxBytes int64
	logger   *slog.Logger
}

// NewPhotoHandler 构造照片处理器。scanner 为 nil 时跳过病毒扫描。
func NewPhotoHandler(store *database.CVStore, storageClient *storage.Client, scanner *clamd.Clamd, maxBytes int64, logger *slog.Logger) *PhotoHandler {
	if maxBytes <= 0 {
		maxBytes = 5 * 1024 * 1024
	}
	return &PhotoHandler{
		store:    store,
		storage:  storageClient,
		scanner:  scanner,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

var photoExtByType = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// Upload 接收 multipart 表单中的 photo 字段并挂到当前身份的简历上。
func (h *PhotoHandler) Upload(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if h.storage == nil {
		Error(c, http.StatusServiceUnavailable, "photo upload is not available")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		BadRequest(c, "photo file is required")
		return
	}
	if fileHeader.Size > h.maxBytes {
		Error(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("photo exceeds %d bytes", h.maxBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("open uploaded photo failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	defer file.Close()

	// 整个文件最多 maxBytes，直接读入内存用于扫描与魔数校验。
	raw, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		logger.Error("read uploaded photo failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if int64(len(raw)) > h.maxBytes {
		Error(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("photo exceeds %d bytes", h.maxBytes))
		return
	}
	if len(raw) == 0 {
		BadRequest(c, "photo file is empty")
		return
	}

	if err := h.scanForViruses(raw); err != nil {
		if errors.Is(err, errVirusDetected) {
			logger.Warn("uploaded photo rejected by scanner")
			BadRequest(c, "file rejected by virus scanner")
			return
		}
		logger.Error("virus scan failed", slog.Any("error", err))
		Error(c, http.StatusServiceUnavailable, "virus scanner unavailable")
		return
	}

	// 内容类型按魔数判断，不信任客户端声明。
	contentType := http.DetectContentType(raw)
	ext, allowed := photoExtByType[contentType]
	if !allowed {
		BadRequest(c, "only png, jpeg and webp photos are allowed")
		return
	}

	record, err := h.store.GetByOwner(ctx, identity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "CV not found")
			return
		}
		logger.Error("load cv failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	var doc cv.Document
	if len(record.Content) > 0 {
		if err := json.Unmarshal(record.Content, &doc); err != nil {
			logger.Error("decode cv content failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
	}

	objectKey := fmt.Sprintf("%s%s.%s", storage.PhotoPrefix(identity), uuid.NewString(), ext)
	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(raw), int64(len(raw)), contentType); err != nil {
		logger.Error("upload photo failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	previousKey := doc.Photo
	doc.Photo = objectKey

	content, err := json.Marshal(&doc)
	if err != nil {
		logger.Error("encode cv content failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	record.Content = content

	if err := h.store.Save(ctx, record); err != nil {
		logger.Error("save cv failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 旧照片异步可清理；失败不影响本次上传。
	if previousKey != "" && storage.IsValidPhotoObjectKey(identity, previousKey) {
		if err := h.storage.DeleteObject(ctx, previousKey); err != nil {
			logger.Error("delete previous photo failed", slog.Any("error", err))
		}
	}

	logger.Info("photo uploaded", slog.String("object_key", objectKey))
	c.JSON(http.StatusOK, gin.H{"photo_key": objectKey})
}

var errVirusDetected = errors.New("virus detected")

func (h *PhotoHandler) scanForViruses(raw []byte) error {
	if h.scanner == nil {
		return nil
	}

	resultCh, err := h.scanner.ScanStream(bytes.NewReader(raw), make(chan bool))
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range resultCh {
		if result.Status != clamd.RES_OK {
			return errVirusDetected
		}
	}
	return nil
}
