package handler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	formatdto "github.com/gicatesis/backend/internal/dto/format"
	generationdto "github.com/gicatesis/backend/internal/dto/generation"
	"github.com/gicatesis/backend/internal/service"
	"github.com/gicatesis/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

type mockCatalogService struct {
	summaries []formatdto.Summary
	version   string
	detail    *formatdto.Detail
	hash      string
	assets    map[string]string
	err       error
	filter    formatdto.ListFilter
}

// List 返回预置列表
func (m *mockCatalogService) List(ctx context.Context, filter formatdto.ListFilter) ([]formatdto.Summary, string, error) {
	m.filter = filter
	return m.summaries, m.version, m.err
}

// Detail 返回预置详情
func (m *mockCatalogService) Detail(ctx context.Context, id string) (*formatdto.Detail, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	if m.detail == nil || m.detail.ID != id {
		return nil, "", service.ErrFormatNotFound
	}
	return m.detail, m.hash, nil
}

// Definition 返回固定定义
func (m *mockCatalogService) Definition(ctx context.Context, id string) (*utils.Object, error) {
	if m.detail == nil || m.detail.ID != id {
		return nil, service.ErrFormatNotFound
	}
	v, _ := utils.ParseJSON([]byte(`{"zeta":1,"alpha":2}`))
	obj, _ := utils.AsObject(v)
	return obj, nil
}

// Version 返回目录版本
func (m *mockCatalogService) Version(ctx context.Context) (*formatdto.VersionResponse, error) {
	return &formatdto.VersionResponse{Version: m.version, GeneratedAt: "2024-01-01T00:00:00Z"}, m.err
}

// Validate 返回空报告
func (m *mockCatalogService) Validate(ctx context.Context) (*formatdto.ValidationResponse, error) {
	return &formatdto.ValidationResponse{TotalFormats: len(m.summaries), ValidFormats: len(m.summaries), Errors: []formatdto.ValidationError{}}, m.err
}

// AssetPath 按预置映射返回资源路径
func (m *mockCatalogService) AssetPath(assetPath string) (string, error) {
	switch assetPath {
	case "../secret":
		return "", service.ErrInvalidAssetPath
	case "escape":
		return "", service.ErrAssetForbidden
	}
	path, ok := m.assets[assetPath]
	if !ok {
		return "", service.ErrAssetNotFound
	}
	return path, nil
}

// Invalidate 无操作
func (m *mockCatalogService) Invalidate(ctx context.Context) error { return nil }

type mockPreviewService struct {
	file  *service.PreviewFile
	err   error
	calls int
}

// Docx 返回预置文件
func (m *mockPreviewService) Docx(ctx context.Context, formatID string) (*service.PreviewFile, error) {
	m.calls++
	return m.file, m.err
}

// PDF 返回预置文件
func (m *mockPreviewService) PDF(ctx context.Context, formatID string) (*service.PreviewFile, error) {
	m.calls++
	return m.file, m.err
}

type mockGenerationService struct {
	resp      *generationdto.GenerateResponse
	err       error
	artifacts map[string]string
	last      generationdto.GenerateRequest
}

// Generate 记录请求并返回预置结果
func (m *mockGenerationService) Generate(ctx context.Context, req generationdto.GenerateRequest) (*generationdto.GenerateResponse, error) {
	m.last = req
	return m.resp, m.err
}

// ArtifactPath 按 runID/type 查找
func (m *mockGenerationService) ArtifactPath(ctx context.Context, runID, artifactType string) (string, error) {
	path, ok := m.artifacts[runID+"/"+artifactType]
	if !ok {
		return "", service.ErrArtifactNotFound
	}
	return path, nil
}

// SweepExpired 无操作
func (m *mockGenerationService) SweepExpired(ctx context.Context) (int, error) { return 0, nil }

type mockRenderService struct {
	doc  *service.RenderedDocument
	err  error
	last generationdto.RenderRequest
}

// RenderDocx 返回预置文档
func (m *mockRenderService) RenderDocx(ctx context.Context, req generationdto.RenderRequest) (*service.RenderedDocument, error) {
	m.last = req
	return m.doc, m.err
}

// RenderPDF 返回预置文档
func (m *mockRenderService) RenderPDF(ctx context.Context, req generationdto.RenderRequest) (*service.RenderedDocument, error) {
	m.last = req
	return m.doc, m.err
}

func newTestRouter() (*gin.Engine, *gin.RouterGroup) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	return r, r.Group("/api/v1")
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write error: %v", err)
	}
	return path
}

var testModTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
