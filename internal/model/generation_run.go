package model

import (
	"time"
)

const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusError   = "error"
)

const (
	ArtifactDocx = "docx"
	ArtifactPdf  = "pdf"
)

// GenerationRun 一次文档生成记录，过期后连同产物一起清理
type GenerationRun struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	RunID     string     `json:"run_id" gorm:"size:64;uniqueIndex;not null"` // UUID
	ProjectID string     `json:"project_id" gorm:"size:255;index"`
	FormatID  string     `json:"format_id" gorm:"size:255;index"`
	Mode      string     `json:"mode" gorm:"size:32"`   // simulation, production, final
	Status    string     `json:"status" gorm:"size:32"` // success, partial, error
	ErrorMsg  string     `json:"error_msg" gorm:"size:2000"`
	OutputDir string     `json:"output_dir" gorm:"size:500"`
	Artifacts []Artifact `json:"artifacts,omitempty" gorm:"foreignKey:RunID;references:RunID"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"index"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Artifact 生成产物
type Artifact struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RunID     string    `json:"run_id" gorm:"size:64;index;not null"`
	Type      string    `json:"type" gorm:"size:16;not null"` // docx, pdf
	Path      string    `json:"path" gorm:"size:1000;not null"`
	CreatedAt time.Time `json:"created_at"`
}
