package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示通过身份提供方登录的账号。
// Email 是整个系统的身份主键，与 CVRecord.OwnerEmail 对应。
type User struct {
	gorm.Model
	Email     string `gorm:"uniqueIndex;size:255"`
	Name      string `gorm:"size:255"`
	AvatarURL string `gorm:"size:512"`
}

// CVRecord 表示一份简历，每个身份最多一条。
// Slug 在创建时生成一次并唯一索引，作为公开页的二级索引，
// 避免按属性扫描整个集合。
type CVRecord struct {
	gorm.Model
	OwnerEmail    string         `gorm:"uniqueIndex;size:255"`
	Slug          string         `gorm:"uniqueIndex;size:128"`
	ConsentPublic bool           `gorm:"default:false"`
	Views         uint           `gorm:"default:0"`
	ThemeColor    string         `gorm:"size:32"`
	PdfKey        string         `gorm:"size:512"`
	Content       datatypes.JSON `gorm:"type:jsonb"`
}
