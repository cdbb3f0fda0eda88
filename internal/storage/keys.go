package storage

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// OwnerKey 把身份邮箱折叠成对象键里安全的短哈希前缀。
// 邮箱本身不进入对象键，避免在存储层泄露身份。
func OwnerKey(ownerEmail string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(ownerEmail))))
	return hex.EncodeToString(sum[:])[:16]
}

// PhotoPrefix 返回某个所有者照片对象的键前缀。
func PhotoPrefix(ownerEmail string) string {
	return fmt.Sprintf("cv-photos/%s/", OwnerKey(ownerEmail))
}

// ExportPrefix 返回某个所有者导出 PDF 的键前缀。
func ExportPrefix(ownerEmail string) string {
	return fmt.Sprintf("cv-exports/%s/", OwnerKey(ownerEmail))
}

// IsValidPhotoObjectKey 校验照片对象键是否属于该所有者且格式合法。
func IsValidPhotoObjectKey(ownerEmail, key string) bool {
	if key == "" || !utf8.ValidString(key) {
		return false
	}
	if !strings.HasPrefix(key, PhotoPrefix(ownerEmail)) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	if len(key) > 200 {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(key))
	return strings.HasSuffix(lower, ".png") ||
		strings.HasSuffix(lower, ".jpg") ||
		strings.HasSuffix(lower, ".jpeg") ||
		strings.HasSuffix(lower, ".webp")
}

// InlineAsDataURI 读取对象并编码为 data URI，用于公开页与打印数据内联图片。
func (c *Client) InlineAsDataURI(ctx context.Context, objectKey string) (string, error) {
	obj, err := c.GetObject(ctx, objectKey)
	if err != nil {
		return "", fmt.Errorf("fetch object: %w", err)
	}
	defer obj.Close()

	contentType := "image/png"
	if stat, statErr := obj.Stat(); statErr == nil && strings.TrimSpace(stat.ContentType) != "" {
		contentType = stat.ContentType
	}

	raw, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}

	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(raw)), nil
}
