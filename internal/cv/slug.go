package cv

import (
	"fmt"
	"strings"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	slugAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	slugSuffixLen  = 6
	slugBaseMaxLen = 40
)

// NewSlug 根据姓名生成公开页的 slug：可读前缀 + 随机后缀。
// slug 只在创建时生成一次，之后编辑永不重算。
func NewSlug(fullName string) (string, error) {
	suffix, err := gonanoid.Generate(slugAlphabet, slugSuffixLen)
	if err != nil {
		return "", fmt.Errorf("generate slug suffix: %w", err)
	}

	base := slugify(fullName)
	if base == "" {
		base = "cv"
	}
	return base + "-" + suffix, nil
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) && r < unicode.MaxASCII, unicode.IsDigit(r) && r < unicode.MaxASCII:
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= slugBaseMaxLen {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
