package sectionindex

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gicatesis/backend/internal/pkg/sanitizer"
	"github.com/gicatesis/backend/internal/utils"
)

const (
	// KindHeading 标题类章节
	KindHeading = "heading"

	maxLevel = 6
)

// titleKeys 标题字段，按优先级排列
var titleKeys = []string{"titulo", "title", "titulo_seccion", "texto"}

// containerKeys 结构容器键，其下的标题节点才会进入索引
var containerKeys = map[string]struct{}{
	"preliminares": {},
	"cuerpo":       {},
	"finales":      {},
	"capitulos":    {},
	"contenido":    {},
	"items":        {},
	"secciones":    {},
	"subsecciones": {},
	"lista":        {},
	"anexos":       {},
	"indices":      {},
}

// Entry 可寻址的章节记录
type Entry struct {
	SectionID string `json:"sectionId"`
	Path      string `json:"path"`
	Level     int    `json:"level"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
}

// Build 深度优先遍历已清洗的定义，按文档顺序生成章节索引
func Build(definition any) []Entry {
	return Visit(definition, nil)
}

// Visit 与 Build 相同的遍历，每生成一个条目即以该条目及其所在节点回调 fn
func Visit(definition any, fn func(entry Entry, node *utils.Object)) []Entry {
	b := &builder{entries: make([]Entry, 0), visit: fn}
	b.walk(definition, nil, 1, false)
	return b.entries
}

type builder struct {
	entries []Entry
	visit   func(entry Entry, node *utils.Object)
}

func (b *builder) walk(node any, path []string, level int, inStructure bool) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			b.walk(item, path, level, inStructure)
		}
	case *utils.Object:
		b.walkObject(v, path, level, inStructure)
	}
}

func (b *builder) walkObject(obj *utils.Object, path []string, level int, inStructure bool) {
	nextPath := path
	nextLevel := level

	if inStructure {
		if title := extractTitle(obj); title != "" {
			nextPath = append(slices.Clip(path), title)
			entry := Entry{
				SectionID: fmt.Sprintf("sec-%04d", len(b.entries)+1),
				Path:      strings.Join(nextPath, "/"),
				Level:     clampLevel(level),
				Kind:      KindHeading,
				Title:     title,
			}
			b.entries = append(b.entries, entry)
			if b.visit != nil {
				b.visit(entry, obj)
			}
			nextLevel = min(level+1, maxLevel)
		}
	}

	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		key := strings.ToLower(pair.Key)
		if sanitizer.IsExcludedKey(pair.Key) || slices.Contains(titleKeys, key) {
			continue
		}
		switch pair.Value.(type) {
		case *utils.Object, []any:
		default:
			continue
		}

		_, isContainer := containerKeys[key]
		childInStructure := inStructure || isContainer
		childLevel := level
		if childInStructure {
			childLevel = nextLevel
		}
		b.walk(pair.Value, nextPath, childLevel, childInStructure)
	}
}

func extractTitle(obj *utils.Object) string {
	for _, key := range titleKeys {
		v, ok := obj.Get(key)
		if !ok {
			continue
		}
		if title := NormalizeTitle(v); title != "" {
			return title
		}
	}
	return ""
}

// NormalizeTitle 去除首尾空白并折叠内部空白；非字符串返回空串
func NormalizeTitle(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

func clampLevel(level int) int {
	return max(1, min(level, maxLevel))
}
