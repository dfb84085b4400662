package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gicatesis/backend/internal/model"
	"gorm.io/gorm"
)

type generationRunRepository struct {
	db *gorm.DB
}

func NewGenerationRunRepository(db *gorm.DB) GenerationRunRepository {
	return &generationRunRepository{db: db}
}

// Create 记录与产物在同一事务中写入
func (r *generationRunRepository) Create(ctx context.Context, run *model.GenerationRun) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
}

func (r *generationRunRepository) Get(ctx context.Context, runID string) (*model.GenerationRun, error) {
	var run model.GenerationRun
	err := r.db.WithContext(ctx).Preload("Artifacts").Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *generationRunRepository) GetArtifact(ctx context.Context, runID, artifactType string, now time.Time) (*model.Artifact, error) {
	var artifact model.Artifact
	err := r.db.WithContext(ctx).
		Joins("JOIN generation_runs ON generation_runs.run_id = artifacts.run_id").
		Where("artifacts.run_id = ? AND artifacts.type = ? AND generation_runs.expires_at > ?", runID, artifactType, now).
		First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &artifact, nil
}

func (r *generationRunRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	var dirs []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expired []model.GenerationRun
		if err := tx.Where("expires_at <= ?", now).Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		runIDs := make([]string, 0, len(expired))
		for _, run := range expired {
			runIDs = append(runIDs, run.RunID)
			if run.OutputDir != "" {
				dirs = append(dirs, run.OutputDir)
			}
		}
		if err := tx.Where("run_id IN ?", runIDs).Delete(&model.Artifact{}).Error; err != nil {
			return err
		}
		return tx.Where("run_id IN ?", runIDs).Delete(&model.GenerationRun{}).Error
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

func (r *generationRunRepository) ListRecent(ctx context.Context, limit int) ([]model.GenerationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []model.GenerationRun
	err := r.db.WithContext(ctx).Preload("Artifacts").Order("created_at DESC, id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
