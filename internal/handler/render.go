package handler

import (
	"net/http"

	generationdto "github.com/gicatesis/backend/internal/dto/generation"
	"github.com/gicatesis/backend/internal/service"
	"github.com/gin-gonic/gin"
)

const renderedBy = "gicatesis-real-generator"

// RenderHandler 直接渲染并返回文件
type RenderHandler struct {
	service service.RenderService
}

// NewRenderHandler 创建Handler
func NewRenderHandler(service service.RenderService) *RenderHandler {
	return &RenderHandler{
		service: service,
	}
}

// RegisterRoutes 注册路由
func (h *RenderHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/render/docx", h.Docx)
	router.POST("/render/pdf", h.PDF)
}

// Docx POST /api/v1/render/docx
func (h *RenderHandler) Docx(c *gin.Context) {
	var req generationdto.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.service.RenderDocx(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeRendered(c, doc)
}

// PDF POST /api/v1/render/pdf
func (h *RenderHandler) PDF(c *gin.Context) {
	var req generationdto.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.service.RenderPDF(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeRendered(c, doc)
}

func writeRendered(c *gin.Context, doc *service.RenderedDocument) {
	c.Header("X-Rendered-By", renderedBy)
	c.Header("X-Render-Mode", doc.Mode)
	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}
