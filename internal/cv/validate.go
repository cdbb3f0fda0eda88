package cv

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	maxScalarLen   = 512
	maxTextLen     = 5000
	maxSectionSize = 50
)

// Validate 在写入前校验 Document 的必填字段与长度上限。
func (d Document) Validate() error {
	if strings.TrimSpace(d.FullName) == "" {
		return errors.New("full name is required")
	}
	if strings.TrimSpace(d.Email) == "" {
		return errors.New("email is required")
	}
	if strings.TrimSpace(d.Summary) == "" {
		return errors.New("summary is required")
	}

	scalars := map[string]string{
		"full_name": d.FullName,
		"email":     d.Email,
		"phone":     d.Phone,
		"location":  d.Location,
		"link":      d.Link,
	}
	for name, value := range scalars {
		if len(value) > maxScalarLen {
			return fmt.Errorf("%s exceeds %d characters", name, maxScalarLen)
		}
	}

	texts := map[string]string{
		"summary":          d.Summary,
		"technical_skills": d.TechnicalSkills,
		"soft_skills":      d.SoftSkills,
	}
	for name, value := range texts {
		if len(value) > maxTextLen {
			return fmt.Errorf("%s exceeds %d characters", name, maxTextLen)
		}
	}

	sections := map[string]int{
		"experience":     len(d.Experience),
		"education":      len(d.Education),
		"languages":      len(d.Languages),
		"certifications": len(d.Certifications),
		"projects":       len(d.Projects),
		"references":     len(d.References),
	}
	for name, size := range sections {
		if size > maxSectionSize {
			return fmt.Errorf("%s has more than %d entries", name, maxSectionSize)
		}
	}

	for i, entry := range d.Certifications {
		if entry.Year != 0 && (entry.Year < 1900 || entry.Year > time.Now().Year()+1) {
			return fmt.Errorf("certifications[%d]: year %d out of range", i, entry.Year)
		}
	}

	return nil
}
