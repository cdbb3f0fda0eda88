package visibility

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cvhub/internal/database"
)

// 访问路径的三种用户可见结局。存储故障不属于其中任何一种，
// 以包装错误的形式单独向上传递，调用方不得把它当成"未找到"。
var (
	// ErrNotFound 表示没有任何记录的 slug 与请求匹配。
	ErrNotFound = errors.New("cv not found")
	// ErrPrivate 表示记录存在但未公开，且请求者不是所有者。
	ErrPrivate = errors.New("cv is private")
)

// Store 是 Gate 对存储层的最小依赖。
type Store interface {
	FindBySlug(ctx context.Context, slug string) (*database.CVRecord, error)
	IncrementViews(ctx context.Context, recordID uint) (uint, error)
}

// Gate 决定一个 (slug, 请求者) 组合能否看到简历，以及是否计一次浏览。
type Gate struct {
	store Store
}

// NewGate 构造 Gate。
func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// Resolve 解析 slug 并做可见性裁决。
// requester 是中间件解析完成后的请求者身份，匿名访问传空字符串；
// 身份必须在调用前解析完毕，Gate 不处理"解析中"的状态。
//
// 规则：
//   - 无匹配记录      => ErrNotFound，不产生任何写入
//   - 私有且非所有者  => ErrPrivate，不泄露记录内容，不产生写入
//   - 公开且非所有者  => 浏览计数持久化 +1（单次写），返回自增后的值
//   - 所有者查看      => 可见，计数不变
//
// 一次 Resolve 最多产生一次计数写入；调用方重复渲染同一结果不会再计数。
func (g *Gate) Resolve(ctx context.Context, slug string, requester string) (*database.CVRecord, error) {
	record, err := g.store.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		// 存储故障必须与"未找到"区分开。
		return nil, fmt.Errorf("lookup cv by slug: %w", err)
	}

	isOwner := requester != "" && requester == record.OwnerEmail

	if !record.ConsentPublic && !isOwner {
		return nil, ErrPrivate
	}

	if record.ConsentPublic && !isOwner {
		views, err := g.store.IncrementViews(ctx, record.ID)
		if err != nil {
			return nil, fmt.Errorf("count view: %w", err)
		}
		record.Views = views
	}

	return record, nil
}
