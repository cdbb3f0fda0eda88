package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// CVStore 封装对 CVRecord 的存取操作。
type CVStore struct {
	db *gorm.DB
}

// NewCVStore 构造 CVStore。
func NewCVStore(db *gorm.DB) *CVStore {
	return &CVStore{db: db}
}

// GetByOwner 按身份主键读取简历记录。
func (s *CVStore) GetByOwner(ctx context.Context, ownerEmail string) (*CVRecord, error) {
	var record CVRecord
	if err := s.db.WithContext(ctx).
		Where("owner_email = ?", ownerEmail).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindBySlug 通过唯一索引解析 slug。
// slug 不是主键，但唯一索引保证最多命中一条记录。
func (s *CVStore) FindBySlug(ctx context.Context, slug string) (*CVRecord, error) {
	var record CVRecord
	if err := s.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Save 写入整条记录（创建或整体覆盖）。
func (s *CVStore) Save(ctx context.Context, record *CVRecord) error {
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("save cv record: %w", err)
	}
	return nil
}

// Delete 按身份主键硬删除记录。
// 删除是不可逆操作，这里刻意绕过 gorm 的软删除。
func (s *CVStore) Delete(ctx context.Context, ownerEmail string) error {
	result := s.db.WithContext(ctx).
		Unscoped().
		Where("owner_email = ?", ownerEmail).
		Delete(&CVRecord{})
	if result.Error != nil {
		return fmt.Errorf("delete cv record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementViews 原子地将浏览计数 +1，并返回自增后的值。
// 并发访客之间不要求严格线性一致，但单次调用最多产生一次写。
func (s *CVStore) IncrementViews(ctx context.Context, recordID uint) (uint, error) {
	if err := s.db.WithContext(ctx).
		Model(&CVRecord{}).
		Where("id = ?", recordID).
		UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
		return 0, fmt.Errorf("increment views: %w", err)
	}

	var record CVRecord
	if err := s.db.WithContext(ctx).
		Select("views").
		First(&record, recordID).Error; err != nil {
		return 0, fmt.Errorf("reload views: %w", err)
	}
	return record.Views, nil
}

// UpdatePdfKey 记录导出 PDF 的对象键。
func (s *CVStore) UpdatePdfKey(ctx context.Context, recordID uint, pdfKey string) error {
	if err := s.db.WithContext(ctx).
		Model(&CVRecord{}).
		Where("id = ?", recordID).
		UpdateColumn("pdf_key", pdfKey).Error; err != nil {
		return fmt.Errorf("update pdf key: %w", err)
	}
	return nil
}
