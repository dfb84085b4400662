package sanitizer

import (
	"strings"

	"github.com/gicatesis/backend/internal/utils"
)

// excludedKeys 说明性键，仅供作者参考，不进入最终文档
var excludedKeys = map[string]struct{}{
	"nota":                  {},
	"notas":                 {},
	"guia":                  {},
	"guias":                 {},
	"ejemplo":               {},
	"ejemplos":              {},
	"instruccion":           {},
	"instrucciones":         {},
	"instruccion_detallada": {},
	"comentario":            {},
	"comentarios":           {},
	"observacion":           {},
	"observaciones":         {},
	"nota_capitulo":         {},
	"nota_general":          {},
}

// IsExcludedKey 判断键是否为说明性键（忽略大小写与首尾空白）
func IsExcludedKey(key string) bool {
	_, ok := excludedKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// ExcludedKeys 返回排除键列表（已排序）
func ExcludedKeys() []string {
	return utils.SortedKeys(excludedKeys)
}

// Sanitize 递归移除说明性键，保留其余结构与顺序
// 不修改输入，返回新的树
func Sanitize(node any) any {
	switch v := node.(type) {
	case *utils.Object:
		out := utils.NewObject()
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			if IsExcludedKey(pair.Key) {
				continue
			}
			out.Set(pair.Key, Sanitize(pair.Value))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			if IsExcludedKey(key) {
				continue
			}
			out[key] = Sanitize(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Sanitize(item)
		}
		return out
	default:
		return node
	}
}
