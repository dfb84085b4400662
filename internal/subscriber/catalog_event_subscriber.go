package subscriber

import (
	"context"

	"github.com/gicatesis/backend/internal/eventbus"
	"k8s.io/klog/v2"
)

// CatalogInvalidator 目录缓存失效接口
type CatalogInvalidator interface {
	Invalidate(ctx context.Context) error
}

type CatalogEventSubscriber struct {
	catalog CatalogInvalidator
}

func NewCatalogEventSubscriber(catalog CatalogInvalidator) *CatalogEventSubscriber {
	return &CatalogEventSubscriber{catalog: catalog}
}

func (s *CatalogEventSubscriber) Register(bus *eventbus.CatalogEventBus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.CatalogEventFormatChanged, s.handleFormatChanged)
	bus.Subscribe(eventbus.CatalogEventReloaded, s.handleReloaded)
}

// handleFormatChanged 格式文件变化后清空哈希缓存，下次请求重新计算
func (s *CatalogEventSubscriber) handleFormatChanged(ctx context.Context, event eventbus.CatalogEvent) error {
	klog.V(6).Infof("格式文件变化: change=%s, path=%s", event.Change, event.Path)
	if s.catalog == nil {
		return nil
	}
	if err := s.catalog.Invalidate(ctx); err != nil {
		klog.Warningf("清理目录缓存失败: path=%s, error=%v", event.Path, err)
		return err
	}
	return nil
}

func (s *CatalogEventSubscriber) handleReloaded(ctx context.Context, event eventbus.CatalogEvent) error {
	klog.V(6).Infof("目录重新加载")
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Invalidate(ctx)
}
