package formatdto

// Summary 格式列表项
type Summary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	University   string `json:"university"`
	Category     string `json:"category"`
	DocumentType string `json:"documentType,omitempty"`
	Version      string `json:"version"`
}

// Field 生成向导字段
type Field struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Type       string   `json:"type"`
	Required   bool     `json:"required"`
	Default    any      `json:"default"`
	Options    []string `json:"options,omitempty"`
	Validation any      `json:"validation,omitempty"`
	Order      any      `json:"order,omitempty"`
	Section    string   `json:"section,omitempty"`
}

type AssetRef struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

type TemplateRef struct {
	Kind string `json:"kind"`
	URI  string `json:"uri"`
}

type RuleSet struct {
	Margins     any `json:"margins,omitempty"`
	Font        any `json:"font,omitempty"`
	LineSpacing any `json:"lineSpacing,omitempty"`
}

// Detail 格式详情，Definition 为完整的原始定义
type Detail struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	University   string       `json:"university"`
	Category     string       `json:"category"`
	DocumentType string       `json:"documentType,omitempty"`
	Version      string       `json:"version"`
	TemplateRef  *TemplateRef `json:"templateRef,omitempty"`
	Fields       []Field      `json:"fields"`
	Assets       []AssetRef   `json:"assets"`
	Rules        *RuleSet     `json:"rules,omitempty"`
	Definition   any          `json:"definition"`
}

type VersionResponse struct {
	Version     string `json:"version"`
	GeneratedAt string `json:"generatedAt"`
}

type ValidationError struct {
	FormatID  string `json:"format_id"`
	Field     string `json:"field,omitempty"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

type ValidationResponse struct {
	TotalFormats   int               `json:"total_formats"`
	ValidFormats   int               `json:"valid_formats"`
	InvalidFormats int               `json:"invalid_formats"`
	Errors         []ValidationError `json:"errors"`
}

// ListFilter 列表过滤条件，均为大小写不敏感
type ListFilter struct {
	University   string `form:"university"`
	Category     string `form:"category"`
	DocumentType string `form:"documentType"`
}
