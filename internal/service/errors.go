package service

import "errors"

// 预定义错误
var (
	ErrFormatNotFound       = errors.New("format not found")
	ErrFormatNotPublishable = errors.New("format is not publishable")
	ErrInvalidMode          = errors.New("invalid mode")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrRenderFailed         = errors.New("docx generation failed")
	ErrPDFUnavailable       = errors.New("pdf conversion unavailable")
	ErrArtifactNotFound     = errors.New("artifact not found or expired")
	ErrInvalidAssetPath     = errors.New("invalid asset path")
	ErrAssetForbidden       = errors.New("asset path outside allowed directory")
	ErrAssetNotFound        = errors.New("asset not found")
)
