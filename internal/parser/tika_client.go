package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TikaClient 通过HTTP调用Apache Tika服务器提取文档文本，
// 用于eino无法处理的doc/docx格式。
type TikaClient struct {
	serverURL  string
	httpClient *http.Client
}

// NewTikaClient 创建Tika客户端。serverURL形如 http://localhost:9998。
func NewTikaClient(serverURL string, timeout time.Duration) *TikaClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &TikaClient{
		serverURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ExtractText 将文件内容PUT到Tika的/tika端点，返回纯文本
func (c *TikaClient) ExtractText(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建Tika请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("Tika服务器返回错误状态 %d: %s", resp.StatusCode, string(body))
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Tika响应失败: %w", err)
	}
	return strings.TrimSpace(string(text)), nil
}

// Ping 检查Tika服务器是否可达
func (c *TikaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/tika", nil)
	if err != nil {
		return fmt.Errorf("创建Tika探活请求失败: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Tika服务器不可达: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("Tika服务器异常状态: %d", resp.StatusCode)
	}
	return nil
}
