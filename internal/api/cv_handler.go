package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"cvhub/internal/api/middleware"
	"cvhub/internal/cv"
	"cvhub/internal/database"
	"cvhub/internal/storage"
	"cvhub/internal/tasks"
)

const exportLinkTTL = 15 * time.Minute

// CVHandler 处理登录用户对自己简历的增删改查与导出。
type CVHandler struct {
	store       *database.CVStore
	storage     *storage.Client
	asynqClient *asynq.Client
	logger      *slog.Logger
}

// NewCVHandler 构造简历处理器。
func NewCVHandler(store *database.CVStore, storageClient *storage.Client, asynqClient *asynq.Client, logger *slog.Logger) *CVHandler {
	return &CVHandler{
		store:       store,
		storage:     storageClient,
		asynqClient: asynqClient,
		logger:      logger,
	}
}

type cvWriteRequest struct {
	ConsentPublic bool         `json:"consent_public"`
	ThemeColor    string       `json:"theme_color"`
	CV            *cv.Document `json:"cv" binding:"required"`
}

type cvRecordResponse struct {
	Slug          string       `json:"slug"`
	ConsentPublic bool         `json:"consent_public"`
	Views         uint         `json:"views"`
	ThemeColor    string       `json:"theme_color"`
	PdfReady      bool         `json:"pdf_ready"`
	UpdatedAt     time.Time    `json:"updated_at"`
	CV            *cv.Document `json:"cv"`
}

func recordToResponse(record *database.CVRecord) (*cvRecordResponse, error) {
	var doc cv.Document
	if len(record.Content) > 0 {
		if err := json.Unmarshal(record.Content, &doc); err != nil {
			return nil, err
		}
	}
	return &cvRecordResponse{
		Slug:          record.Slug,
		ConsentPublic: record.ConsentPublic,
		Views:         record.Views,
		ThemeColor:    record.ThemeColor,
		PdfReady:      record.PdfKey != "",
		UpdatedAt:     record.UpdatedAt,
		CV:            &doc,
	}, nil
}

// GetMyCV 返回当前身份名下的简历。
func (h *CVHandler) GetMyCV(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	record, err := h.store.GetByOwner(c.Request.Context(), identity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "CV not found")
			return
		}
		middleware.LoggerFromContext(c).Error("load cv failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	resp, err := recordToResponse(record)
	if err != nil {
		middleware.LoggerFromContext(c).Error("decode cv content failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SaveCV 创建或整体覆盖当前身份的简历。
// 创建时生成一次 slug；之后的覆盖写保留原 slug，公开链接因此保持稳定。
func (h *CVHandler) SaveCV(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req cvWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	if err := req.CV.Validate(); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	record, err := h.store.GetByOwner(ctx, identity)
	created := false
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		slug, slugErr := cv.NewSlug(req.CV.FullName)
		if slugErr != nil {
			logger.Error("generate slug failed", slog.Any("error", slugErr))
			Internal(c, "internal error")
			return
		}
		record = &database.CVRecord{
			OwnerEmail: identity,
			Slug:       slug,
		}
		created = true
	case err != nil:
		logger.Error("load cv failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 照片键由上传接口维护，覆盖写不允许客户端伪造他人对象键。
	if req.CV.Photo != "" && !storage.IsValidPhotoObjectKey(identity, req.CV.Photo) {
		req.CV.Photo = ""
	}

	content, err := json.Marshal(req.CV)
	if err != nil {
		logger.Error("encode cv content failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	record.ConsentPublic = req.ConsentPublic
	record.ThemeColor = req.ThemeColor
	record.Content = content

	if err := h.store.Save(ctx, record); err != nil {
		logger.Error("save cv failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	resp, err := recordToResponse(record)
	if err != nil {
		logger.Error("decode cv content failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		logger.Info("cv created", slog.String("slug", record.Slug))
	}
	c.JSON(status, resp)
}

// DeleteCV 不可逆地删除简历记录以及名下的照片与导出对象。
func (h *CVHandler) DeleteCV(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	if err := h.store.Delete(ctx, identity); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "CV not found")
			return
		}
		logger.Error("delete cv failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 对象清理失败不回滚删除，记录即可。
	if h.storage != nil {
		if err := h.storage.DeletePrefix(ctx, storage.PhotoPrefix(identity)); err != nil {
			logger.Error("delete photos failed", slog.Any("error", err))
		}
		if err := h.storage.DeletePrefix(ctx, storage.ExportPrefix(identity)); err != nil {
			logger.Error("delete exports failed", slog.Any("error", err))
		}
	}

	logger.Info("cv deleted")
	c.Status(http.StatusNoContent)
}

// ExportCV 入队一个异步导出任务并立即返回。
func (h *CVHandler) ExportCV(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if h.asynqClient == nil {
		Error(c, http.StatusServiceUnavailable, "export is not available")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	if _, err := h.store.GetByOwner(ctx, identity); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "CV not found")
			return
		}
		logger.Error("load cv failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	task, err := tasks.NewCVExportTask(identity, middleware.GetCorrelationID(c))
	if err != nil {
		logger.Error("build export task failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	info, err := h.asynqClient.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Timeout(2*time.Minute))
	if err != nil {
		logger.Error("enqueue export task failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("export task enqueued", slog.String("task_id", info.ID))
	c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "status": "queued"})
}

// GetExportLink 为已生成的导出 PDF 签发限时下载链接。
func (h *CVHandler) GetExportLink(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if h.storage == nil {
		Error(c, http.StatusServiceUnavailable, "export is not available")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

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
	if record.PdfKey == "" {
		Conflict(c, "pdf not ready")
		return
	}

	link, err := h.storage.GeneratePresignedURL(ctx, record.PdfKey, exportLinkTTL)
	if err != nil {
		logger.Error("presign export link failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"download_url": link,
		"expires_in":   int(exportLinkTTL.Seconds()),
	})
}
