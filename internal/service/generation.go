package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	generationdto "github.com/gicatesis/backend/internal/dto/generation"
	"github.com/gicatesis/backend/internal/eventbus"
	"github.com/gicatesis/backend/internal/model"
	"github.com/gicatesis/backend/internal/pkg/catalog"
	"github.com/gicatesis/backend/internal/pkg/docx"
	"github.com/gicatesis/backend/internal/pkg/formatindex"
	"github.com/gicatesis/backend/internal/pkg/resolver"
	"github.com/gicatesis/backend/internal/repository"
	"github.com/gicatesis/backend/internal/utils"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

const (
	// DefaultArtifactTTL 产物保留时长
	DefaultArtifactTTL = time.Hour

	mergedInputName     = "merged_input.json"
	artifactURLTemplate = "/api/v1/artifacts/%s/%s"
)

// GenerationService 文档生成服务
type GenerationService interface {
	// Generate 生成 DOCX/PDF 产物
	Generate(ctx context.Context, req generationdto.GenerateRequest) (*generationdto.GenerateResponse, error)

	// ArtifactPath 返回未过期产物的文件路径
	ArtifactPath(ctx context.Context, runID, artifactType string) (string, error)

	// SweepExpired 删除过期记录与其输出目录
	SweepExpired(ctx context.Context) (int, error)
}

// GenerationOptions 生成服务参数
type GenerationOptions struct {
	OutputDir string
	TTL       time.Duration
}

type generationService struct {
	index     *formatindex.Index
	renderer  DocumentRenderer
	converter PDFConverter
	repo      repository.GenerationRunRepository
	bus       *eventbus.GenerationEventBus
	opts      GenerationOptions

	now   func() time.Time
	newID func() string
}

// NewGenerationService 创建生成服务；converter 为空时只产出 DOCX
func NewGenerationService(
	index *formatindex.Index,
	renderer DocumentRenderer,
	converter PDFConverter,
	repo repository.GenerationRunRepository,
	bus *eventbus.GenerationEventBus,
	opts GenerationOptions,
) GenerationService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultArtifactTTL
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "outputs"
	}
	return &generationService{
		index:     index,
		renderer:  renderer,
		converter: converter,
		repo:      repo,
		bus:       bus,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *generationService) Generate(ctx context.Context, req generationdto.GenerateRequest) (*generationdto.GenerateResponse, error) {
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = generationdto.ModeSimulation
	}
	switch mode {
	case generationdto.ModeSimulation, generationdto.ModeProduction, generationdto.ModeFinal:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, req.Mode)
	}
	if err := req.AIResult.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if _, err := s.SweepExpired(ctx); err != nil {
		klog.Warningf("清理过期产物失败: %v", err)
	}

	resp := &generationdto.GenerateResponse{
		ProjectID: req.ProjectID,
		RunID:     s.newID(),
		FormatID:  req.FormatID,
		Status:    model.RunStatusError,
		Artifacts: []generationdto.ArtifactResponse{},
	}

	format, err := resolveFormat(ctx, s.index, req.FormatID)
	if err != nil {
		resp.Error = err.Error()
		return resp, err
	}
	if !catalog.IsPublishable(format.raw) {
		resp.Error = ErrFormatNotPublishable.Error()
		return resp, fmt.Errorf("%w: %s", ErrFormatNotPublishable, req.FormatID)
	}
	if req.FormatVersion != "" {
		current := catalog.EntryHash(catalog.FromDefinition(format.entry, format.raw))
		if !strings.HasPrefix(current, req.FormatVersion) {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("format version changed: requested %s, current %s", req.FormatVersion, catalog.ShortVersion(current)))
		}
	}

	var (
		definition any
		simulation simulationInput
	)
	if mode == generationdto.ModeSimulation {
		var sections []resolver.AISection
		if req.AIResult != nil {
			sections = req.AIResult.Sections
		}
		simulation = prepareSimulation(format.raw, req.Values, sections)
		definition = simulation.definition
	} else {
		definition = prepareFinal(format.raw, req.Values)
	}

	runDir := filepath.Join(s.opts.OutputDir, "artifacts", resp.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return resp, s.fail(ctx, resp, mode, runDir, fmt.Errorf("failed to create run dir: %w", err))
	}
	inputPath := filepath.Join(runDir, mergedInputName)
	if err := utils.WriteJSONFile(inputPath, definition); err != nil {
		return resp, s.fail(ctx, resp, mode, runDir, err)
	}

	docxPath := filepath.Join(runDir, safeName(format.entry.ID)+".docx")
	if err := s.renderer.Render(ctx, format.script, inputPath, docxPath); err != nil {
		return resp, s.fail(ctx, resp, mode, runDir, fmt.Errorf("%w: %w", ErrRenderFailed, err))
	}

	if mode == generationdto.ModeSimulation {
		if _, err := docx.PostProcessFile(docxPath, simulation.entries, simulation.lookup); err != nil {
			klog.Warningf("模拟文档后处理失败: runID=%s, error=%v", resp.RunID, err)
			resp.Warnings = append(resp.Warnings, "docx post-processing failed: "+err.Error())
		}
	}

	artifacts := []model.Artifact{{RunID: resp.RunID, Type: model.ArtifactDocx, Path: docxPath}}
	resp.Status = model.RunStatusSuccess

	pdfPath := withExt(docxPath, ".pdf")
	if err := s.convert(ctx, docxPath, pdfPath); err != nil {
		klog.Warningf("PDF 转换失败: runID=%s, error=%v", resp.RunID, err)
		resp.Status = model.RunStatusPartial
		resp.Warnings = append(resp.Warnings, "pdf conversion failed: "+err.Error())
	} else {
		artifacts = append(artifacts, model.Artifact{RunID: resp.RunID, Type: model.ArtifactPdf, Path: pdfPath})
	}

	run := s.newRun(resp, mode, runDir)
	run.Artifacts = artifacts
	if err := s.repo.Create(ctx, run); err != nil {
		return resp, s.fail(ctx, resp, mode, runDir, fmt.Errorf("failed to save generation run: %w", err))
	}

	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		names = append(names, a.Type)
		resp.Artifacts = append(resp.Artifacts, generationdto.ArtifactResponse{
			Type:        a.Type,
			DownloadURL: fmt.Sprintf(artifactURLTemplate, resp.RunID, a.Type),
		})
	}
	s.publish(ctx, eventbus.GenerationEvent{
		Type:      eventbus.GenerationEventCompleted,
		RunID:     resp.RunID,
		ProjectID: resp.ProjectID,
		FormatID:  resp.FormatID,
		Mode:      mode,
		Status:    resp.Status,
		Artifacts: names,
	})
	return resp, nil
}

func (s *generationService) convert(ctx context.Context, docxPath, pdfPath string) error {
	if s.converter == nil {
		return ErrPDFUnavailable
	}
	return s.converter.Convert(ctx, docxPath, pdfPath)
}

// fail 记录失败的运行，返回原错误
func (s *generationService) fail(ctx context.Context, resp *generationdto.GenerateResponse, mode, runDir string, cause error) error {
	resp.Status = model.RunStatusError
	resp.Error = cause.Error()
	resp.Artifacts = []generationdto.ArtifactResponse{}

	run := s.newRun(resp, mode, runDir)
	if err := s.repo.Create(ctx, run); err != nil {
		klog.Errorf("保存失败记录出错: runID=%s, error=%v", resp.RunID, err)
	}
	s.publish(ctx, eventbus.GenerationEvent{
		Type:      eventbus.GenerationEventFailed,
		RunID:     resp.RunID,
		ProjectID: resp.ProjectID,
		FormatID:  resp.FormatID,
		Mode:      mode,
		Status:    resp.Status,
		Error:     resp.Error,
	})
	return cause
}

func (s *generationService) newRun(resp *generationdto.GenerateResponse, mode, runDir string) *model.GenerationRun {
	now := s.now()
	return &model.GenerationRun{
		RunID:     resp.RunID,
		ProjectID: resp.ProjectID,
		FormatID:  resp.FormatID,
		Mode:      mode,
		Status:    resp.Status,
		ErrorMsg:  resp.Error,
		OutputDir: runDir,
		ExpiresAt: now.Add(s.opts.TTL),
	}
}

func (s *generationService) publish(ctx context.Context, event eventbus.GenerationEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event.Type, event); err != nil {
		klog.Warningf("发布生成事件失败: runID=%s, error=%v", event.RunID, err)
	}
}

func (s *generationService) ArtifactPath(ctx context.Context, runID, artifactType string) (string, error) {
	artifactType = strings.ToLower(artifactType)
	if artifactType != model.ArtifactDocx && artifactType != model.ArtifactPdf {
		return "", ErrArtifactNotFound
	}
	artifact, err := s.repo.GetArtifact(ctx, runID, artifactType, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrArtifactNotFound
		}
		return "", err
	}
	if info, err := os.Stat(artifact.Path); err != nil || info.IsDir() {
		return "", ErrArtifactNotFound
	}
	return artifact.Path, nil
}

func (s *generationService) SweepExpired(ctx context.Context) (int, error) {
	dirs, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			klog.Warningf("删除过期产物目录失败: dir=%s, error=%v", dir, err)
		}
	}
	if len(dirs) > 0 {
		klog.V(6).Infof("已清理过期生成记录: count=%d", len(dirs))
	}
	return len(dirs), nil
}
