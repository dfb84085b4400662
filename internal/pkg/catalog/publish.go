package catalog

import (
	"strings"

	"github.com/gicatesis/backend/internal/utils"
)

// IsPublishable 判断定义是否应出现在公开目录中
// _meta.publish 存在时以其真值为准；否则 entity 非 format 时不发布；
// 再否则只要含有 caratula 或 cuerpo 即视为正式格式
func IsPublishable(raw *utils.Object) bool {
	if raw == nil {
		return false
	}
	meta, _ := utils.ChildObject(raw, "_meta")
	if meta != nil {
		if v, ok := meta.Get("publish"); ok {
			return truthy(v)
		}
		entity := strings.ToLower(utils.FirstString(meta, "entity"))
		if entity != "" && entity != "format" {
			return false
		}
	}

	_, hasCaratula := raw.Get("caratula")
	_, hasCuerpo := raw.Get("cuerpo")
	return hasCaratula || hasCuerpo
}
