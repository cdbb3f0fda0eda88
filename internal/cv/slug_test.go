package cv

import (
	"strings"
	"testing"
)

func TestNewSlugFormat(t *testing.T) {
	slug, err := NewSlug("Jane Doe")
	if err != nil {
		t.Fatalf("NewSlug: %v", err)
	}
	if !strings.HasPrefix(slug, "jane-doe-") {
		t.Fatalf("slug %q should start with jane-doe-", slug)
	}

	suffix := strings.TrimPrefix(slug, "jane-doe-")
	if len(suffix) != slugSuffixLen {
		t.Fatalf("suffix %q should have %d characters", suffix, slugSuffixLen)
	}
	for _, r := range suffix {
		if !strings.ContainsRune(slugAlphabet, r) {
			t.Fatalf("suffix %q contains %q outside the slug alphabet", suffix, r)
		}
	}
}

func TestNewSlugFoldsSpecialCharacters(t *testing.T) {
	slug, err := NewSlug("  José  Álvarez-Núñez !! ")
	if err != nil {
		t.Fatalf("NewSlug: %v", err)
	}
	base := slug[:strings.LastIndex(slug, "-")]
	if strings.Contains(base, "--") {
		t.Fatalf("base %q should not contain consecutive dashes", base)
	}
	for _, r := range base {
		if r != '-' && !strings.ContainsRune("abcdefghijklmnopqrstuvwxyz0123456789", r) {
			t.Fatalf("base %q contains non-ascii rune %q", base, r)
		}
	}
}

func TestNewSlugEmptyNameFallsBack(t *testing.T) {
	slug, err := NewSlug("   ")
	if err != nil {
		t.Fatalf("NewSlug: %v", err)
	}
	if !strings.HasPrefix(slug, "cv-") {
		t.Fatalf("slug %q should fall back to the cv- prefix", slug)
	}
}

func TestNewSlugSuffixVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		slug, err := NewSlug("Jane Doe")
		if err != nil {
			t.Fatalf("NewSlug: %v", err)
		}
		if seen[slug] {
			t.Fatalf("slug %q repeated within 20 generations", slug)
		}
		seen[slug] = true
	}
}

func TestNewSlugTruncatesLongNames(t *testing.T) {
	slug, err := NewSlug(strings.Repeat("verylongname ", 20))
	if err != nil {
		t.Fatalf("NewSlug: %v", err)
	}
	base := slug[:strings.LastIndex(slug, "-")]
	if len(base) > slugBaseMaxLen {
		t.Fatalf("base %q longer than %d characters", base, slugBaseMaxLen)
	}
}
