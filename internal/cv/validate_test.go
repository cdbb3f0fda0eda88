package cv

import (
	"strings"
	"testing"
)

func validDocument() Document {
	return Document{
		FullName: "Jane Doe",
		Email:    "jane@example.com",
		Summary:  "Backend engineer.",
	}
}

func TestValidateRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Document)
	}{
		{"missing full name", func(d *Document) { d.FullName = " " }},
		{"missing email", func(d *Document) { d.Email = "" }},
		{"missing summary", func(d *Document) { d.Summary = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := validDocument()
			tc.mutate(&doc)
			if err := doc.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := validDocument().Validate(); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
}

func TestValidateLengthLimits(t *testing.T) {
	doc := validDocument()
	doc.Phone = strings.Repeat("9", maxScalarLen+1)
	if err := doc.Validate(); err == nil {
		t.Fatal("expected scalar length error")
	}

	doc = validDocument()
	doc.Summary = strings.Repeat("a", maxTextLen+1)
	if err := doc.Validate(); err == nil {
		t.Fatal("expected text length error")
	}

	doc = validDocument()
	doc.Experience = make([]ExperienceEntry, maxSectionSize+1)
	if err := doc.Validate(); err == nil {
		t.Fatal("expected section size error")
	}
}

func TestValidateCertificationYear(t *testing.T) {
	doc := validDocument()
	doc.Certifications = []CertificationEntry{{Name: "AWS", Year: 1800}}
	if err := doc.Validate(); err == nil {
		t.Fatal("expected certification year error")
	}

	doc.Certifications = []CertificationEntry{{Name: "AWS", Year: 0}}
	if err := doc.Validate(); err != nil {
		t.Fatalf("zero year should be allowed: %v", err)
	}
}
