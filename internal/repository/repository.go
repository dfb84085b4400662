package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gicatesis/backend/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

// GenerationRunRepository 生成记录仓储接口
type GenerationRunRepository interface {
	// Create 保存生成记录及其产物
	Create(ctx context.Context, run *model.GenerationRun) error

	// Get 按 runID 获取，含产物
	Get(ctx context.Context, runID string) (*model.GenerationRun, error)

	// GetArtifact 获取未过期记录的指定类型产物
	GetArtifact(ctx context.Context, runID, artifactType string, now time.Time) (*model.Artifact, error)

	// DeleteExpired 删除已过期记录，返回其输出目录
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)

	// ListRecent 最近的生成记录
	ListRecent(ctx context.Context, limit int) ([]model.GenerationRun, error)
}
