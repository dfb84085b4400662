package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gicatesis/backend/internal/pkg/pdfconv"
	"github.com/gicatesis/backend/internal/pkg/registry"
	"github.com/gicatesis/backend/internal/service"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

// statusFor 将服务层错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrFormatNotFound),
		errors.Is(err, service.ErrFormatNotPublishable),
		errors.Is(err, service.ErrArtifactNotFound),
		errors.Is(err, service.ErrAssetNotFound),
		errors.Is(err, registry.ErrOrganizationNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidMode),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidAssetPath):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAssetForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrPDFUnavailable),
		errors.Is(err, pdfconv.ErrConverterStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, pdfconv.ErrConversionTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		klog.Errorf("请求处理失败: %s %s, error=%v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// etagMatches If-None-Match 与 ETag 比较，去掉引号与弱校验前缀，* 匹配任意值
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	want := strings.Trim(etag, `"`)
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		candidate = strings.Trim(strings.TrimPrefix(candidate, "W/"), `"`)
		if candidate == want {
			return true
		}
	}
	return false
}

// notModifiedSince If-Modified-Since 不早于文件修改时间（秒级精度）
func notModifiedSince(header string, modTime time.Time) bool {
	if header == "" || modTime.IsZero() {
		return false
	}
	since, err := http.ParseTime(header)
	if err != nil {
		return false
	}
	return !modTime.Truncate(time.Second).After(since)
}
