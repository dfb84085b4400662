package formatindex

import (
	"regexp"
	"strings"
)

var (
	separatorPattern = regexp.MustCompile(`[_\s]+`)
	dashPattern      = regexp.MustCompile(`-+`)
	tokenPattern     = regexp.MustCompile(`[-_]+`)
)

var enfoqueAliases = map[string]string{
	"cual":         "cual",
	"cualitativo":  "cual",
	"cuant":        "cuant",
	"cuantitativo": "cuant",
}

// EnfoqueGeneral 无法识别研究取向时的默认值
const EnfoqueGeneral = "general"

// NormalizeID 将原始标识规范化为带机构前缀的 slug，幂等
func NormalizeID(raw, uni string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return ""
	}
	normalized = separatorPattern.ReplaceAllString(normalized, "-")
	normalized = dashPattern.ReplaceAllString(normalized, "-")
	normalized = strings.Trim(normalized, "-")
	if !strings.HasPrefix(normalized, uni+"-") {
		normalized = uni + "-" + normalized
	}
	return normalized
}

// Humanize 由标识生成可读标题
func Humanize(id, uni string) string {
	cleaned := strings.TrimPrefix(id, uni+"-")
	parts := Tokens(cleaned)
	if len(parts) == 0 {
		return id
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

// Tokens 按 - 与 _ 切分，去掉空片段
func Tokens(s string) []string {
	var out []string
	for _, t := range tokenPattern.Split(s, -1) {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// DeriveEnfoque 依据标识片段推断研究取向
func DeriveEnfoque(tokens []string) string {
	for _, token := range tokens {
		if mapped, ok := enfoqueAliases[token]; ok {
			return mapped
		}
	}
	return EnfoqueGeneral
}

func capitalize(w string) string {
	runes := []rune(strings.ToLower(w))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}
