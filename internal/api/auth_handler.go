package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvhub/internal/api/middleware"
	"cvhub/internal/auth"
	"cvhub/internal/database"
)

const refreshTokenCookieName = "refresh_token"
const refreshTokenBlacklistKeyPrefix = "auth:refresh:blacklist:"

// AuthHandler 处理 Google 登录回调、令牌刷新与退出。
type AuthHandler struct {
	db           *gorm.DB
	authService  *auth.AuthService
	google       *auth.GoogleService
	redis        redis.UniversalClient
	logger       *slog.Logger
	cookieDomain string
	uiRedirect   string
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(db *gorm.DB, authService *auth.AuthService, googleService *auth.GoogleService, redisClient redis.UniversalClient, logger *slog.Logger, cookieDomain, uiRedirect string) *AuthHandler {
	return &AuthHandler{
		db:           db,
		authService:  authService,
		google:       googleService,
		redis:        redisClient,
		logger:       logger,
		cookieDomain: cookieDomain,
		uiRedirect:   uiRedirect,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// GoogleStart 生成一次性 state 并跳转到 Google 授权页。
func (h *AuthHandler) GoogleStart(c *gin.Context) {
	if !h.google.Configured() {
		Internal(c, "google auth is not configured")
		return
	}

	authURL, err := h.google.BeginLogin(c.Request.Context())
	if err != nil {
		h.loggerFromContext(c).Error("begin google login failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// GoogleCallback 消费 state、换取用户档案并签发会话令牌。
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		BadRequest(c, "missing state or code")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	if err := h.google.ConsumeState(ctx, state); err != nil {
		if errors.Is(err, auth.ErrInvalidState) {
			BadRequest(c, "invalid or expired state")
			return
		}
		logger.Error("consume oauth state failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	profile, err := h.google.Exchange(ctx, code)
	if err != nil {
		logger.Info("google exchange failed", slog.Any("error", err))
		Error(c, http.StatusBadGateway, "failed to verify login")
		return
	}

	if err := h.upsertUser(ctx, profile); err != nil {
		logger.Error("upsert user failed", slog.Any("error", err), slog.String("identity", profile.Email))
		Internal(c, "internal error")
		return
	}

	tokenPair, err := h.authService.GenerateTokenPair(profile.Email, profile.Name, profile.AvatarURL)
	if err != nil {
		logger.Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("user logged in", slog.String("identity", profile.Email))
	h.setRefreshCookie(c, tokenPair.RefreshToken)

	if h.uiRedirect != "" {
		c.Redirect(http.StatusFound, appendAccessToken(h.uiRedirect, tokenPair.AccessToken))
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: tokenPair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.authService.AccessTokenTTL().Seconds()),
	})
}

// 令牌通过 URL fragment 返回，避免进入服务端日志。
func appendAccessToken(uiRedirect, accessToken string) string {
	return strings.TrimRight(uiRedirect, "/") + "#access_token=" + url.QueryEscape(accessToken)
}

func (h *AuthHandler) upsertUser(ctx context.Context, profile auth.Profile) error {
	var user database.User
	err := h.db.WithContext(ctx).Where("email = ?", profile.Email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = database.User{Email: profile.Email, Name: profile.Name, AvatarURL: profile.AvatarURL}
		return h.db.WithContext(ctx).Create(&user).Error
	case err != nil:
		return err
	default:
		return h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
			"name":       profile.Name,
			"avatar_url": profile.AvatarURL,
		}).Error
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh 校验刷新令牌并颁发新的 TokenPair。
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		Unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, err := h.authService.ValidateToken(refreshToken)
	if err != nil {
		logger.Info("refresh token invalid", slog.Any("error", err))
		Unauthorized(c)
		return
	}
	if claims.TokenType != "refresh" {
		logger.Info("refresh token wrong type", slog.String("token_type", claims.TokenType))
		Unauthorized(c)
		return
	}
	if claims.ID == "" {
		logger.Info("refresh token missing jti")
		Unauthorized(c)
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.redis.Get(ctx, key).Err(); err == nil {
		logger.Info("refresh token revoked", slog.String("jti", claims.ID))
		Unauthorized(c)
		return
	} else if !errors.Is(err, redis.Nil) {
		logger.Error("refresh token blacklist lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Where("email = ?", claims.Identity).First(&user).Error; err != nil {
		logger.Info("refresh user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	tokenPair, err := h.authService.GenerateTokenPair(user.Email, user.Name, user.AvatarURL)
	if err != nil {
		logger.Error("refresh generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 旋转旧刷新令牌，防止重复使用。
	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("refresh revoke old token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.setRefreshCookie(c, tokenPair.RefreshToken)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: tokenPair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.authService.AccessTokenTTL().Seconds()),
	})
}

// Logout 将刷新令牌加入黑名单并清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		BadRequest(c, "refresh token missing")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, err := h.authService.ValidateToken(refreshToken)
	if err != nil {
		logger.Info("logout token invalid", slog.Any("error", err))
		Unauthorized(c)
		return
	}
	if claims.TokenType != "refresh" || claims.ID == "" {
		Unauthorized(c)
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("logout revoke token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 清除 Cookie。
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   h.isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   h.getCookieDomain(),
	})
	c.Status(http.StatusOK)
}

// Me 返回当前登录身份的展示信息。
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).Where("email = ?", claims.Identity).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Unauthorized(c)
			return
		}
		h.loggerFromContext(c).Error("load user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity":   user.Email,
		"name":       user.Name,
		"avatar_url": user.AvatarURL,
	})
}

func (h *AuthHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, refreshToken string) {
	maxAge := int(h.authService.RefreshTokenTTL().Seconds())
	if maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	cookie := &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    refreshToken,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   h.isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   h.getCookieDomain(),
		Expires:  time.Now().Add(h.authService.RefreshTokenTTL()),
	}
	http.SetCookie(c.Writer, cookie)
}

func (h *AuthHandler) revokeRefreshToken(ctx context.Context, key string, expiresAt *jwt.NumericDate) error {
	var ttl time.Duration
	if expiresAt == nil {
		ttl = h.authService.RefreshTokenTTL()
	} else {
		ttl = time.Until(expiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return h.redis.Set(ctx, key, "revoked", ttl).Err()
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func (h *AuthHandler) isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}

func (h *AuthHandler) getCookieDomain() string { return strings.TrimSpace(h.cookieDomain) }
