package subscriber

import (
	"context"
	"strings"

	"github.com/gicatesis/backend/internal/eventbus"
	"k8s.io/klog/v2"
)

type GenerationEventSubscriber struct{}

func NewGenerationEventSubscriber() *GenerationEventSubscriber {
	return &GenerationEventSubscriber{}
}

func (s *GenerationEventSubscriber) Register(bus *eventbus.GenerationEventBus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.GenerationEventCompleted, s.handleCompleted)
	bus.Subscribe(eventbus.GenerationEventFailed, s.handleFailed)
}

func (s *GenerationEventSubscriber) handleCompleted(ctx context.Context, event eventbus.GenerationEvent) error {
	klog.V(6).Infof("生成完成: runID=%s, formatID=%s, mode=%s, status=%s, artifacts=%s",
		event.RunID, event.FormatID, event.Mode, event.Status, strings.Join(event.Artifacts, ","))
	return nil
}

// handleFailed 记录失败的生成任务
func (s *GenerationEventSubscriber) handleFailed(ctx context.Context, event eventbus.GenerationEvent) error {
	klog.Warningf("生成失败: runID=%s, formatID=%s, mode=%s, error=%s", event.RunID, event.FormatID, event.Mode, event.Error)
	return nil
}
