package translate

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"cvhub/internal/cv"
)

// ErrUnavailable 表示整轮翻译全部失败（网关完全不可达）。
// 返回的副本仍然可用（等于原文），调用方据此提示"翻译不可用"。
var ErrUnavailable = errors.New("translation unavailable")

// Document 产出简历的翻译副本。
//
// 逐字段翻译，白名单外的字段（日期、链接、照片、计数、主题、
// 语言等级、证书年份）原样拷贝。单个字段失败时保留原文，不中断
// 其余字段，也不向用户暴露错误。条目之间、字段之间并发翻译，
// 重组后保持原有顺序与字段归属。输入值不会被修改或共享底层数组。
func Document(ctx context.Context, client *Client, doc cv.Document, targetLang string) (cv.Document, error) {
	out := doc.Clone()

	fields := collectFields(&out)
	if len(fields) == 0 {
		return out, nil
	}

	var succeeded atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(client.concurrency)
	for _, field := range fields {
		field := field
		g.Go(func() error {
			translated, err := client.Translate(ctx, *field, targetLang)
			if err != nil {
				// 失败即回退原文；没有重试。
				return nil
			}
			*field = translated
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if succeeded.Load() == 0 {
		return out, ErrUnavailable
	}
	return out, nil
}

// collectFields 返回白名单内所有非空字段的指针。
// 每个指针指向副本中互不重叠的字段，可以安全地并发写入。
func collectFields(doc *cv.Document) []*string {
	fields := make([]*string, 0, 16)

	add := func(p *string) {
		if *p != "" {
			fields = append(fields, p)
		}
	}

	add(&doc.Summary)
	add(&doc.TechnicalSkills)
	add(&doc.SoftSkills)

	for i := range doc.Experience {
		entry := &doc.Experience[i]
		add(&entry.Title)
		add(&entry.Company)
		add(&entry.Location)
		add(&entry.Description)
	}
	for i := range doc.Education {
		entry := &doc.Education[i]
		add(&entry.Degree)
		add(&entry.Institution)
		add(&entry.Location)
		add(&entry.Achievements)
	}
	for i := range doc.Projects {
		entry := &doc.Projects[i]
		add(&entry.Name)
		add(&entry.Description)
	}
	for i := range doc.References {
		entry := &doc.References[i]
		add(&entry.Name)
		add(&entry.Position)
		add(&entry.Company)
	}

	// Languages 与 Certifications 整段不在白名单内，保持逐字节不变。
	return fields
}
