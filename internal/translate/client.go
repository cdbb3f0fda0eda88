package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cvhub/internal/config"
)

// Client 封装对翻译网关（LibreTranslate 协议）的调用。
// 协议：POST {q, source, target, format:"text"} => {translatedText}。
type Client struct {
	endpoint    string
	sourceLang  string
	timeout     time.Duration
	concurrency int
	httpClient  *http.Client
}

// NewClient 根据配置构造翻译客户端。
func NewClient(cfg config.TranslateConfig) *Client {
	return &Client{
		endpoint:    cfg.Endpoint,
		sourceLang:  cfg.SourceLang,
		timeout:     cfg.FieldTimeout,
		concurrency: cfg.Concurrency,
		httpClient:  &http.Client{Timeout: cfg.FieldTimeout},
	}
}

// WithSource 返回一个使用指定源语言的派生客户端，原客户端不变。
func (c *Client) WithSource(lang string) *Client {
	lang = strings.TrimSpace(lang)
	if lang == "" || lang == c.sourceLang {
		return c
	}
	derived := *c
	derived.sourceLang = lang
	return &derived
}

// SourceLang 返回客户端当前的源语言。
func (c *Client) SourceLang() string {
	return c.sourceLang
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate 对一段文本做单次翻译尝试。
// 网络错误、非 2xx 响应、畸形响应体都视为失败；没有重试。
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(translateRequest{
		Q:      text,
		Source: c.sourceLang,
		Target: targetLang,
		Format: "text",
	})
	if err != nil {
		return "", fmt.Errorf("encode translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request translation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translation status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	if parsed.TranslatedText == "" {
		return "", fmt.Errorf("empty translation result")
	}

	return parsed.TranslatedText, nil
}
