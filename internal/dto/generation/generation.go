package generationdto

import "github.com/gicatesis/backend/internal/pkg/resolver"

const (
	ModeSimulation = "simulation"
	ModeProduction = "production"
	ModeFinal      = "final"
)

// AIResult 外部生成的章节内容
type AIResult struct {
	Sections []resolver.AISection `json:"sections"`
}

// Validate 每个章节至少有 sectionId 或 path
func (r *AIResult) Validate() error {
	if r == nil {
		return nil
	}
	for _, s := range r.Sections {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	ProjectID     string         `json:"projectId" binding:"required"`
	FormatID      string         `json:"formatId" binding:"required"`
	FormatVersion string         `json:"formatVersion,omitempty"`
	Mode          string         `json:"mode"`
	Values        map[string]any `json:"values"`
	AIResult      *AIResult      `json:"aiResult,omitempty"`
}

type ArtifactResponse struct {
	Type        string `json:"type"`
	DownloadURL string `json:"downloadUrl"`
}

// GenerateResponse 生成结果
type GenerateResponse struct {
	ProjectID string             `json:"projectId"`
	RunID     string             `json:"runId"`
	FormatID  string             `json:"formatId"`
	Status    string             `json:"status"`
	Artifacts []ArtifactResponse `json:"artifacts"`
	Error     string             `json:"error,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// RenderRequest 直接渲染请求，mode 为 simulation 或 final
type RenderRequest struct {
	FormatID string         `json:"formatId" binding:"required"`
	Values   map[string]any `json:"values"`
	Mode     string         `json:"mode"`
	AIResult *AIResult      `json:"aiResult,omitempty"`
}
