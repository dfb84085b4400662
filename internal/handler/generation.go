package handler

import (
	"net/http"
	"path/filepath"

	generationdto "github.com/gicatesis/backend/internal/dto/generation"
	"github.com/gicatesis/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// GenerationHandler 文档生成与产物下载
type GenerationHandler struct {
	service service.GenerationService
}

// NewGenerationHandler 创建Handler
func NewGenerationHandler(service service.GenerationService) *GenerationHandler {
	return &GenerationHandler{
		service: service,
	}
}

// RegisterRoutes 注册路由
func (h *GenerationHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/generate", h.Generate)
	router.GET("/artifacts/:runId/:type", h.Download)
}

// Generate 生成 DOCX/PDF 产物
// POST /api/v1/generate
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req generationdto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		// 渲染失败时返回带运行号的完整结果
		if resp != nil && statusFor(err) == http.StatusInternalServerError {
			c.JSON(http.StatusInternalServerError, resp)
			return
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Download 下载生成产物
// GET /api/v1/artifacts/:runId/:type
func (h *GenerationHandler) Download(c *gin.Context) {
	path, err := h.service.ArtifactPath(c.Request.Context(), c.Param("runId"), c.Param("type"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
