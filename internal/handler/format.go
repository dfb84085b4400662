package handler

import (
	"net/http"
	"strings"

	formatdto "github.com/gicatesis/backend/internal/dto/format"
	"github.com/gicatesis/backend/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	listCacheControl    = "public, max-age=60"
	versionCacheControl = "public, max-age=30"
	assetCacheControl   = "public, max-age=86400"
	previewCacheControl = "public, max-age=300"
)

// FormatHandler 格式目录、预览与静态资源
type FormatHandler struct {
	catalog service.CatalogService
	preview service.PreviewService
}

// NewFormatHandler 创建Handler
func NewFormatHandler(catalog service.CatalogService, preview service.PreviewService) *FormatHandler {
	return &FormatHandler{
		catalog: catalog,
		preview: preview,
	}
}

// RegisterRoutes 注册路由
func (h *FormatHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/formats", h.List)
	router.GET("/formats/version", h.Version)
	router.GET("/formats/validate", h.Validate)
	router.GET("/formats/:id", h.Get)
	router.GET("/formats/:id/data", h.Data)
	router.GET("/formats/:id/preview/pdf", h.PreviewPDF)
	router.GET("/formats/:id/preview/docx", h.PreviewDocx)
	router.GET("/assets/*path", h.Asset)
}

// List 可发布格式列表
// GET /api/v1/formats?university=&category=&documentType=
func (h *FormatHandler) List(c *gin.Context) {
	var filter formatdto.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summaries, version, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}

	etag := `"` + version + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", listCacheControl)
	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// Version 目录版本
// GET /api/v1/formats/version
func (h *FormatHandler) Version(c *gin.Context) {
	version, err := h.catalog.Version(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Cache-Control", versionCacheControl)
	c.JSON(http.StatusOK, version)
}

// Validate 校验全部格式
// GET /api/v1/formats/validate
func (h *FormatHandler) Validate(c *gin.Context) {
	report, err := h.catalog.Validate(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Get 格式详情，ETag 为完整内容哈希
// GET /api/v1/formats/:id
func (h *FormatHandler) Get(c *gin.Context) {
	detail, hash, err := h.catalog.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	etag := `"` + hash + `"`
	c.Header("ETag", etag)
	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Data 原始格式定义
// GET /api/v1/formats/:id/data
func (h *FormatHandler) Data(c *gin.Context) {
	definition, err := h.catalog.Definition(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, definition)
}

// PreviewPDF 格式预览 PDF
// GET /api/v1/formats/:id/preview/pdf
func (h *FormatHandler) PreviewPDF(c *gin.Context) {
	file, err := h.preview.PDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	servePreview(c, file)
}

// PreviewDocx 格式预览 DOCX
// GET /api/v1/formats/:id/preview/docx
func (h *FormatHandler) PreviewDocx(c *gin.Context) {
	file, err := h.preview.Docx(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	servePreview(c, file)
}

func servePreview(c *gin.Context, file *service.PreviewFile) {
	c.Header("ETag", file.ETag)
	c.Header("Cache-Control", previewCacheControl)
	if !file.ModTime.IsZero() {
		c.Header("Last-Modified", file.ModTime.UTC().Format(http.TimeFormat))
	}
	if etagMatches(c.GetHeader("If-None-Match"), file.ETag) ||
		notModifiedSince(c.GetHeader("If-Modified-Since"), file.ModTime) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("Content-Type", file.ContentType)
	c.Header("Content-Disposition", `inline; filename="`+file.Filename+`"`)
	c.File(file.Path)
}

// Asset 格式引用的静态资源
// GET /api/v1/assets/*path
func (h *FormatHandler) Asset(c *gin.Context) {
	assetPath := strings.TrimPrefix(c.Param("path"), "/")
	path, err := h.catalog.AssetPath(assetPath)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Cache-Control", assetCacheControl)
	c.File(path)
}
