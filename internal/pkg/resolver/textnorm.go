package resolver

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText 去除首尾空白并折叠内部空白
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeForMatch 用于模糊比较：NFKD 分解、去除变音符号、小写、折叠空白
func NormalizeForMatch(s string) string {
	text := NormalizeText(s)
	if text == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}
