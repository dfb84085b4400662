package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health 存活检查
// GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
