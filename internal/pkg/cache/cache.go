package cache

import (
	"context"
	"time"
)

// Item 缓存条目，记录写入时间与对应源文件的修改时间
type Item struct {
	Value       string    `json:"value"`
	SourceMTime time.Time `json:"source_mtime"`
	StoredAt    time.Time `json:"stored_at"`
}

// FreshFor 缓存写入不早于源文件修改，且记录的源修改时间一致时视为新鲜
func (i *Item) FreshFor(sourceMTime time.Time) bool {
	if i == nil {
		return false
	}
	return !i.StoredAt.Before(sourceMTime) && i.SourceMTime.Equal(sourceMTime)
}

// Store 键值缓存
type Store interface {
	// Get 读取条目，不存在时返回 nil, nil
	Get(ctx context.Context, key string) (*Item, error)

	// Set 写入条目，StoredAt 为空时补当前时间
	Set(ctx context.Context, key string, item Item) error

	// Delete 删除条目
	Delete(ctx context.Context, keys ...string) error

	// Clear 清空本缓存命名空间下的全部条目
	Clear(ctx context.Context) error
}

// Lookup 读取新鲜的缓存值；缓存出错时按未命中处理
func Lookup(ctx context.Context, s Store, key string, sourceMTime time.Time) (string, bool) {
	item, err := s.Get(ctx, key)
	if err != nil || !item.FreshFor(sourceMTime) {
		return "", false
	}
	return item.Value, true
}
