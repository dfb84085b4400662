package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	generationdto "github.com/gicatesis/backend/internal/dto/generation"
	"github.com/gicatesis/backend/internal/pkg/docx"
	"github.com/gicatesis/backend/internal/pkg/formatindex"
	"github.com/gicatesis/backend/internal/pkg/resolver"
	"k8s.io/klog/v2"
)

// RenderedDocument 渲染结果
type RenderedDocument struct {
	Data        []byte
	Filename    string
	ContentType string
	Mode        string
}

// RenderService 直接渲染，不保留产物
type RenderService interface {
	RenderDocx(ctx context.Context, req generationdto.RenderRequest) (*RenderedDocument, error)
	RenderPDF(ctx context.Context, req generationdto.RenderRequest) (*RenderedDocument, error)
}

type renderService struct {
	index     *formatindex.Index
	renderer  DocumentRenderer
	converter PDFConverter
	preview   PreviewService
	tempDir   string
}

// NewRenderService 创建渲染服务，tempDir 为空时使用系统临时目录
func NewRenderService(index *formatindex.Index, renderer DocumentRenderer, converter PDFConverter, preview PreviewService, tempDir string) RenderService {
	return &renderService{index: index, renderer: renderer, converter: converter, preview: preview, tempDir: tempDir}
}

func renderMode(req generationdto.RenderRequest) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = generationdto.ModeSimulation
	}
	if mode != generationdto.ModeSimulation && mode != generationdto.ModeFinal {
		return "", fmt.Errorf("%w: %s", ErrInvalidMode, req.Mode)
	}
	if err := req.AIResult.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return mode, nil
}

func (s *renderService) RenderDocx(ctx context.Context, req generationdto.RenderRequest) (*RenderedDocument, error) {
	mode, err := renderMode(req)
	if err != nil {
		return nil, err
	}
	format, err := resolveFormat(ctx, s.index, req.FormatID)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp(s.tempDir, "render-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	docxPath, filename, err := s.renderDocx(ctx, format, req, mode, workDir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(docxPath)
	if err != nil {
		return nil, err
	}
	return &RenderedDocument{Data: data, Filename: filename, ContentType: ContentTypeDocx, Mode: mode}, nil
}

func (s *renderService) RenderPDF(ctx context.Context, req generationdto.RenderRequest) (*RenderedDocument, error) {
	mode, err := renderMode(req)
	if err != nil {
		return nil, err
	}
	format, err := resolveFormat(ctx, s.index, req.FormatID)
	if err != nil {
		return nil, err
	}

	// final 模式复用预览缓存
	if mode == generationdto.ModeFinal && s.preview != nil {
		file, err := s.preview.PDF(ctx, req.FormatID)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(file.Path)
		if err != nil {
			return nil, err
		}
		return &RenderedDocument{Data: data, Filename: pdfFilename(format.entry), ContentType: ContentTypePDF, Mode: mode}, nil
	}
	if s.converter == nil {
		return nil, ErrPDFUnavailable
	}

	workDir, err := os.MkdirTemp(s.tempDir, "render-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	docxPath, filename, err := s.renderDocx(ctx, format, req, mode, workDir)
	if err != nil {
		return nil, err
	}
	pdfPath := withExt(docxPath, ".pdf")
	if err := s.converter.Convert(ctx, docxPath, pdfPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, err
	}
	if mode == generationdto.ModeFinal {
		filename = pdfFilename(format.entry)
	} else {
		filename = withExt(filename, ".pdf")
	}
	return &RenderedDocument{Data: data, Filename: filename, ContentType: ContentTypePDF, Mode: mode}, nil
}

// renderDocx 写入临时 JSON、调用生成脚本，模拟模式再做标题锚定；临时 JSON 总会被删除
func (s *renderService) renderDocx(ctx context.Context, format *resolvedFormat, req generationdto.RenderRequest, mode, workDir string) (string, string, error) {
	var (
		definition any
		simulation simulationInput
		filename   string
	)
	if mode == generationdto.ModeSimulation {
		var sections []resolver.AISection
		if req.AIResult != nil {
			sections = req.AIResult.Sections
		}
		simulation = prepareSimulation(format.raw, req.Values, sections)
		definition = simulation.definition
		filename = simulationFilename(format.entry)
	} else {
		definition = prepareFinal(format.raw, req.Values)
		filename = documentFilename(format.entry)
	}

	input, err := writeInputJSON(workDir, "sim_*.json", definition)
	if err != nil {
		return "", "", err
	}
	docxPath := filepath.Join(workDir, "output.docx")
	err = s.renderer.Render(ctx, format.script, input, docxPath)
	removeQuietly(input)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	if mode == generationdto.ModeSimulation {
		result, err := docx.PostProcessFile(docxPath, simulation.entries, simulation.lookup)
		if err != nil {
			return "", "", err
		}
		klog.V(6).Infof("模拟文档已渲染: id=%s, inserted=%d, removed_guides=%d", format.entry.ID, result.Inserted, result.RemovedGuides)
	}
	return docxPath, filename, nil
}
