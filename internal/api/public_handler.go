package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"cvhub/internal/api/middleware"
	"cvhub/internal/cv"
	"cvhub/internal/storage"
	"cvhub/internal/translate"
	"cvhub/internal/visibility"
)

// PublicHandler 处理 slug 寻址的公开简历页。
type PublicHandler struct {
	gate             *visibility.Gate
	translator       *translate.Client
	storage          *storage.Client
	redis            redis.UniversalClient
	ratePerIP        int
	translateRatePer int
	logger           *slog.Logger
}

// NewPublicHandler 构造公开页处理器。
// translator、storage、redis 均可为 nil：翻译与照片内联按尽力而为降级，
// 限流在没有 redis 时直接放行。
func NewPublicHandler(gate *visibility.Gate, translator *translate.Client, storageClient *storage.Client, redisClient redis.UniversalClient, ratePerIP, translateRatePerIP int, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{
		gate:             gate,
		translator:       translator,
		storage:          storageClient,
		redis:            redisClient,
		ratePerIP:        ratePerIP,
		translateRatePer: translateRatePerIP,
		logger:           logger,
	}
}

type publicCVResponse struct {
	Slug              string       `json:"slug"`
	Views             uint         `json:"views"`
	ThemeColor        string       `json:"theme_color"`
	CV                *cv.Document `json:"cv"`
	TranslationNotice string       `json:"translation_notice,omitempty"`
}

// GetCV 解析 slug、做可见性裁决并渲染简历。
// 身份由 OptionalAuthMiddleware 在进入本处理器前解析完毕：
// 要么是确定的登录身份，要么是匿名，不存在第三种状态。
func (h *PublicHandler) GetCV(c *gin.Context) {
	if !h.allowRequest(c) {
		TooManyRequests(c)
		return
	}

	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		NotFound(c, "CV not found")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	requester, _ := middleware.IdentityFromContext(c)

	record, err := h.gate.Resolve(ctx, slug, requester)
	if err != nil {
		switch {
		case errors.Is(err, visibility.ErrNotFound):
			NotFound(c, "CV not found")
		case errors.Is(err, visibility.ErrPrivate):
			Forbidden(c, "This CV is private")
		default:
			// 存储故障，与"未找到"严格区分。
			logger.Error("resolve cv failed", slog.String("slug", slug), slog.Any("error", err))
			Internal(c, "internal error")
		}
		return
	}

	var doc cv.Document
	if len(record.Content) > 0 {
		if err := json.Unmarshal(record.Content, &doc); err != nil {
			logger.Error("decode cv content failed", slog.String("slug", slug), slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
	}

	h.inlinePhoto(c, &doc)

	resp := publicCVResponse{
		Slug:       record.Slug,
		Views:      record.Views,
		ThemeColor: record.ThemeColor,
		CV:         &doc,
	}

	if lang := strings.TrimSpace(c.Query("lang")); lang != "" && h.translator != nil {
		client := h.translator
		if source := strings.TrimSpace(c.Query("source")); source != "" {
			client = client.WithSource(source)
		}

		if lang != client.SourceLang() {
			// 翻译调用比普通读贵得多，单独再限一道。
			if !h.allowTranslate(c) {
				TooManyRequests(c)
				return
			}

			translated, err := translate.Document(ctx, client, doc, lang)
			if err != nil {
				// 翻译不可用时退回原文，页面照常渲染。
				logger.Info("translation unavailable", slog.String("slug", slug), slog.String("lang", lang))
				resp.TranslationNotice = "translation unavailable, showing original"
			}
			resp.CV = &translated
		}
	}

	c.JSON(http.StatusOK, resp)
}

// inlinePhoto 尽力把照片对象内联为 data URI；失败只记录日志。
func (h *PublicHandler) inlinePhoto(c *gin.Context, doc *cv.Document) {
	if h.storage == nil || doc.Photo == "" {
		return
	}
	dataURI, err := h.storage.InlineAsDataURI(c.Request.Context(), doc.Photo)
	if err != nil {
		if !storage.IsNoSuchKey(err) {
			middleware.LoggerFromContext(c).Error("inline photo failed", slog.Any("error", err))
		}
		doc.Photo = ""
		return
	}
	doc.Photo = dataURI
}

// allowRequest 对公开页做按 IP 的滑动小时限流。
// redis 不可用或限流被关闭时放行；限流是防刷手段，不是正确性边界。
func (h *PublicHandler) allowRequest(c *gin.Context) bool {
	if h.redis == nil || h.ratePerIP <= 0 {
		return true
	}

	key := "ratelimit:public_cv:" + c.ClientIP()
	count, err := incrWithTTL(c.Request.Context(), h.redis, key, time.Hour)
	if err != nil {
		middleware.LoggerFromContext(c).Error("rate limit check failed", slog.Any("error", err))
		return true
	}
	return count <= int64(h.ratePerIP)
}

func (h *PublicHandler) allowTranslate(c *gin.Context) bool {
	if h.redis == nil || h.translateRatePer <= 0 {
		return true
	}

	key := "ratelimit:translate:" + c.ClientIP()
	count, err := incrWithTTL(c.Request.Context(), h.redis, key, time.Hour)
	if err != nil {
		middleware.LoggerFromContext(c).Error("translate rate limit check failed", slog.Any("error", err))
		return true
	}
	return count <= int64(h.translateRatePer)
}
