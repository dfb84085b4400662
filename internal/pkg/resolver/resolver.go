package resolver

import (
	"errors"
	"strings"

	"github.com/gicatesis/backend/internal/pkg/sectionindex"
)

// Placeholder 未找到 AI 内容时使用的固定文本
const Placeholder = "Contenido IA simulado"

var ErrMissingLocator = errors.New("ai section requires sectionId or path")

// AISection 外部提供的章节内容
type AISection struct {
	SectionID string `json:"sectionId,omitempty"`
	Path      string `json:"path,omitempty"`
	Content   string `json:"content"`
}

// Validate 至少需要一个定位字段
func (s AISection) Validate() error {
	if strings.TrimSpace(s.SectionID) == "" && strings.TrimSpace(s.Path) == "" {
		return ErrMissingLocator
	}
	return nil
}

// Lookup 按定位方式索引的内容
type Lookup struct {
	ByID             map[string]string
	ByPath           map[string]string
	ByNormalizedPath map[string]string
}

// BuildLookup 构建三张查找表；空内容或无定位字段的条目直接跳过
func BuildLookup(sections []AISection) Lookup {
	lookup := Lookup{
		ByID:             make(map[string]string),
		ByPath:           make(map[string]string),
		ByNormalizedPath: make(map[string]string),
	}

	for _, section := range sections {
		// 保留换行，便于插入文档时按行拆分段落
		content := strings.TrimSpace(section.Content)
		if NormalizeText(content) == "" {
			continue
		}
		if id := NormalizeText(section.SectionID); id != "" {
			lookup.ByID[strings.ToLower(id)] = content
		}
		if path := NormalizeText(section.Path); path != "" {
			lookup.ByPath[path] = content
			lookup.ByNormalizedPath[NormalizeForMatch(path)] = content
		}
	}
	return lookup
}

// Resolve 按 ID > 路径 > 归一化路径 > 占位文本 的优先级解析内容，永不失败
func Resolve(entry sectionindex.Entry, lookup Lookup) string {
	if id := strings.ToLower(NormalizeText(entry.SectionID)); id != "" {
		if content, ok := lookup.ByID[id]; ok {
			return content
		}
	}

	path := NormalizeText(entry.Path)
	if path != "" {
		if content, ok := lookup.ByPath[path]; ok {
			return content
		}
	}

	if normalized := NormalizeForMatch(path); normalized != "" {
		if content, ok := lookup.ByNormalizedPath[normalized]; ok {
			return content
		}
	}

	return Placeholder
}

// ResolveAll 解析全部章节，结果以 SectionID 为键
func ResolveAll(entries []sectionindex.Entry, lookup Lookup) map[string]string {
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		out[entry.SectionID] = Resolve(entry, lookup)
	}
	return out
}
