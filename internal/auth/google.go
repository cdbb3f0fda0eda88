package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"cvhub/internal/config"
)

const oauthStateKeyPrefix = "oauth:state:"

// ErrInvalidState 表示回调携带的 state 不存在或已被使用。
var ErrInvalidState = errors.New("invalid or expired oauth state")

// Profile 是身份提供方返回的展示信息。
type Profile struct {
	Email     string
	Name      string
	AvatarURL string
}

// GoogleService 负责 Google OAuth 授权码流程。
// state 随机数存放在 Redis 并限时单次消费，防止回放。
type GoogleService struct {
	oauthConfig *oauth2.Config
	redis       redis.UniversalClient
	stateTTL    time.Duration
}

// NewGoogleService 构造 GoogleService。
func NewGoogleService(cfg config.OAuthConfig, redisClient redis.UniversalClient) *GoogleService {
	return &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		redis:    redisClient,
		stateTTL: 5 * time.Minute,
	}
}

// Configured 报告必需的客户端凭据是否就位。
func (s *GoogleService) Configured() bool {
	return s.oauthConfig.ClientID != "" &&
		s.oauthConfig.ClientSecret != "" &&
		s.oauthConfig.RedirectURL != ""
}

// BeginLogin 生成一次性 state 并返回授权跳转地址。
func (s *GoogleService) BeginLogin(ctx context.Context) (string, error) {
	state := uuid.NewString()
	key := oauthStateKeyPrefix + state
	if err := s.redis.Set(ctx, key, "1", s.stateTTL).Err(); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// ConsumeState 校验并删除 state，只允许消费一次。
func (s *GoogleService) ConsumeState(ctx context.Context, state string) error {
	if state == "" {
		return ErrInvalidState
	}
	deleted, err := s.redis.Del(ctx, oauthStateKeyPrefix+state).Result()
	if err != nil {
		return fmt.Errorf("consume oauth state: %w", err)
	}
	if deleted == 0 {
		return ErrInvalidState
	}
	return nil
}

// Exchange 用授权码换取令牌并拉取用户档案。
func (s *GoogleService) Exchange(ctx context.Context, code string) (Profile, error) {
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	return s.fetchUserInfo(ctx, token)
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (s *GoogleService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (Profile, error) {
	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Profile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return Profile{}, errors.New("userinfo missing email")
	}

	return Profile{
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}
