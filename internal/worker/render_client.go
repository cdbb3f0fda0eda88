package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cvhub/internal/config"
)

// RenderClient 调用外部打印服务，把简历 JSON 渲染成 PDF。
// 打印服务是黑盒：POST JSON，返回 application/pdf 字节流。
type RenderClient struct {
	serviceURL string
	httpClient *http.Client
}

// NewRenderClient 构造渲染客户端。
func NewRenderClient(cfg config.PrintConfig) (*RenderClient, error) {
	serviceURL := strings.TrimRight(strings.TrimSpace(cfg.ServiceURL), "/")
	if serviceURL == "" {
		return nil, fmt.Errorf("print service url missing")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &RenderClient{
		serviceURL: serviceURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// RenderPDF 提交打印数据并返回 PDF 字节。
func (r *RenderClient) RenderPDF(ctx context.Context, printData []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serviceURL, bytes.NewReader(printData))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request pdf render: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, fmt.Errorf("pdf render status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	pdfBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rendered pdf: %w", err)
	}
	if len(pdfBytes) == 0 {
		return nil, fmt.Errorf("render service returned empty pdf")
	}

	return pdfBytes, nil
}
