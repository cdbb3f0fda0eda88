package cv

// Document 表示存储在 CVRecord.Content(JSONB) 中的结构化简历数据。
// 字段集合是固定的；动态表单里出现过的键在写入时全部映射到这里。
type Document struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Location        string `json:"location"`
	Link            string `json:"link"`
	Photo           string `json:"photo"`
	Summary         string `json:"summary"`
	TechnicalSkills string `json:"technical_skills"`
	SoftSkills      string `json:"soft_skills"`

	Experience     []ExperienceEntry    `json:"experience,omitempty"`
	Education      []EducationEntry     `json:"education,omitempty"`
	Languages      []LanguageEntry      `json:"languages,omitempty"`
	Certifications []CertificationEntry `json:"certifications,omitempty"`
	Projects       []ProjectEntry       `json:"projects,omitempty"`
	References     []ReferenceEntry     `json:"references,omitempty"`
}

// ExperienceEntry 表示一段工作经历。
type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
	Tools       string `json:"tools"`
}

// EducationEntry 表示一段教育经历。
type EducationEntry struct {
	Degree       string `json:"degree"`
	Institution  string `json:"institution"`
	Location     string `json:"location"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Achievements string `json:"achievements"`
}

type LanguageEntry struct {
	Language string `json:"language"`
	Level    string `json:"level"`
}

type CertificationEntry struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer"`
	Year   int    `json:"year"`
}

type ProjectEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role"`
	Tools       string `json:"tools"`
	Link        string `json:"link"`
}

type ReferenceEntry struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Company  string `json:"company"`
	Contact  string `json:"contact"`
}

// Clone 返回 Document 的深拷贝，切片不与原值共享底层数组。
func (d Document) Clone() Document {
	out := d
	out.Experience = append([]ExperienceEntry(nil), d.Experience...)
	out.Education = append([]EducationEntry(nil), d.Education...)
	out.Languages = append([]LanguageEntry(nil), d.Languages...)
	out.Certifications = append([]CertificationEntry(nil), d.Certifications...)
	out.Projects = append([]ProjectEntry(nil), d.Projects...)
	out.References = append([]ReferenceEntry(nil), d.References...)
	return out
}
