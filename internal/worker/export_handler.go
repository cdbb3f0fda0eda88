package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvhub/internal/cv"
	"cvhub/internal/database"
	"cvhub/internal/errcode"
	"cvhub/internal/storage"
	"cvhub/internal/tasks"
)

// ExportTaskHandler 负责消费简历导出任务。
type ExportTaskHandler struct {
	store       *database.CVStore
	storage     *storage.Client
	render      *RenderClient
	redisClient redis.UniversalClient
	logger      *slog.Logger
}

// NewExportTaskHandler 创建任务处理器。
func NewExportTaskHandler(
	store *database.CVStore,
	storageClient *storage.Client,
	renderClient *RenderClient,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
) *ExportTaskHandler {
	return &ExportTaskHandler{
		store:       store,
		storage:     storageClient,
		render:      renderClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// 打印服务的输入：简历内容加上展示属性。
type printPayload struct {
	Slug       string       `json:"slug"`
	ThemeColor string       `json:"theme_color"`
	CV         *cv.Document `json:"cv"`
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.CVExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
	)
	log.Info("starting cv export task")

	// 内容在消费时重新加载，入队后的编辑以最新版本为准。
	record, err := h.store.GetByOwner(ctx, payload.OwnerEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("cv record not found, skipping task")
			return nil
		}
		log.Error("load cv record failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.String("slug", record.Slug))

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		notify := ExportNotifyMessage{
			Status:        "error",
			Slug:          record.Slug,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishExportNotify(ctx, payload.OwnerEmail, notify); err != nil {
			log.Error("publish export error notification failed", slog.Any("error", err))
		}
	}()

	var doc cv.Document
	if len(record.Content) > 0 {
		if err := json.Unmarshal(record.Content, &doc); err != nil {
			log.Error("decode cv content failed", slog.Any("error", err))
			return err
		}
	}

	// 照片内联成 data URI，打印服务不访问对象存储。
	if doc.Photo != "" && h.storage != nil {
		dataURI, err := h.storage.InlineAsDataURI(ctx, doc.Photo)
		if err != nil {
			if storage.IsNoSuchKey(err) {
				log.Warn("photo object missing, exporting without photo")
				doc.Photo = ""
			} else {
				log.Error("inline photo failed", slog.Any("error", err))
				return err
			}
		} else {
			doc.Photo = dataURI
		}
	}

	printData, err := json.Marshal(printPayload{
		Slug:       record.Slug,
		ThemeColor: record.ThemeColor,
		CV:         &doc,
	})
	if err != nil {
		log.Error("encode print payload failed", slog.Any("error", err))
		return err
	}

	pdfBytes, err := h.render.RenderPDF(ctx, printData)
	if err != nil {
		log.Error("render pdf failed", slog.Any("error", err))
		return err
	}

	objectName := fmt.Sprintf("%s%s.pdf", storage.ExportPrefix(payload.OwnerEmail), uuid.NewString())
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	previousKey := record.PdfKey
	if err := h.store.UpdatePdfKey(ctx, record.ID, objectName); err != nil {
		log.Error("update pdf key failed", slog.Any("error", err))
		return err
	}

	// 旧导出只保留最新一份；清理失败不影响任务结果。
	if previousKey != "" && previousKey != objectName {
		if err := h.storage.DeleteObject(ctx, previousKey); err != nil {
			log.Warn("delete previous export failed", slog.Any("error", err))
		}
	}

	notify := ExportNotifyMessage{
		Status:        "completed",
		Slug:          record.Slug,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := h.publishExportNotify(ctx, payload.OwnerEmail, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("cv export task completed")
	return nil
}

func (h *ExportTaskHandler) publishExportNotify(ctx context.Context, ownerEmail string, notify ExportNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%s", storage.OwnerKey(ownerEmail))
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
