package catalog

import (
	"fmt"
	"strings"
)

const (
	IssueMissingID         = "missing_id"
	IssueMissingField      = "missing_field"
	IssueInvalidType       = "invalid_type"
	IssueMissingOptions    = "missing_options"
	IssueUnexpectedOptions = "unexpected_options"
	IssueMissingAssetID    = "missing_asset_id"
	IssueMissingAssetKind  = "missing_asset_kind"
	IssueDuplicateID       = "duplicate_id"

	SeverityError = "error"
)

// Issue 单条校验问题
type Issue struct {
	FormatID string `json:"formatId"`
	Field    string `json:"field,omitempty"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// ValidationReport 目录校验报告
type ValidationReport struct {
	Total   int     `json:"total"`
	Valid   int     `json:"valid"`
	Invalid int     `json:"invalid"`
	Errors  []Issue `json:"errors"`
}

// Validate 校验目录中的全部格式，并检测重复 id
// 重复 id 记录为问题，但不影响该格式自身的有效计数
func Validate(formats []Format) ValidationReport {
	report := ValidationReport{Total: len(formats), Errors: make([]Issue, 0)}
	seen := make(map[string]string, len(formats))

	for _, f := range formats {
		if first, ok := seen[f.ID]; ok {
			report.Errors = append(report.Errors, Issue{
				FormatID: f.ID,
				Type:     IssueDuplicateID,
				Message:  fmt.Sprintf("duplicate format id, also found in: %s", first),
				Severity: SeverityError,
			})
		} else {
			seen[f.ID] = f.SourcePath
		}

		issues := ValidateFormat(f)
		if len(issues) == 0 {
			report.Valid++
			continue
		}
		report.Errors = append(report.Errors, issues...)
	}
	report.Invalid = report.Total - report.Valid
	return report
}

// ValidateFormat 校验单个格式
func ValidateFormat(f Format) []Issue {
	var issues []Issue
	add := func(field, typ, msg string) {
		id := f.ID
		if strings.TrimSpace(id) == "" {
			id = "unknown"
		}
		issues = append(issues, Issue{FormatID: id, Field: field, Type: typ, Message: msg, Severity: SeverityError})
	}

	if strings.TrimSpace(f.ID) == "" {
		add("", IssueMissingID, "format id is empty or missing")
	}
	if strings.TrimSpace(f.Title) == "" {
		add("title", IssueMissingField, "format title is empty or missing")
	}
	if strings.TrimSpace(f.University) == "" {
		add("university", IssueMissingField, "university code is empty or missing")
	}

	for i, field := range f.Fields {
		name := field.Name
		if name == "" {
			name = fmt.Sprintf("field_%d", i)
		}
		fieldType := field.Type
		if fieldType == "" {
			fieldType = FieldText
		}
		if _, ok := ValidFieldTypes[fieldType]; !ok {
			add(name, IssueInvalidType, fmt.Sprintf("invalid field type %q", fieldType))
		}
		if fieldType == FieldSelect {
			if !HasOptions(field.Options) {
				add(name, IssueMissingOptions, "field type 'select' requires a non-empty options list")
			}
		} else if field.Options != nil {
			add(name, IssueUnexpectedOptions, fmt.Sprintf("field type %q should not have options", fieldType))
		}
	}

	for i, asset := range f.Assets {
		id := asset.ID
		if strings.TrimSpace(id) == "" {
			add(fmt.Sprintf("asset_%d", i), IssueMissingAssetID, "asset id is empty")
			id = fmt.Sprintf("asset_%d", i)
		}
		if asset.Kind == "" {
			add(id, IssueMissingAssetKind, "asset kind is missing")
		}
	}
	return issues
}

// HasOptions options 是否为非空列表
func HasOptions(options any) bool {
	list, ok := options.([]any)
	return ok && len(list) > 0
}
