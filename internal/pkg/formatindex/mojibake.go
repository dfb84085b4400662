package formatindex

import (
	"fmt"
	"strings"

	"github.com/gicatesis/backend/internal/utils"
)

// DefaultAnomalyLimit 单次扫描最多报告的位置数
const DefaultAnomalyLimit = 5

const maxSnippetLen = 120

// mojibakePatterns UTF-8 被按 Latin-1 解码后常见的乱码片段
var mojibakePatterns = []string{
	"Ã",
	"Â",
	"â€",
	"â€¢",
	"â€“",
	"â€”",
	"Ã¡",
	"Ã©",
	"Ã­",
	"Ã³",
	"Ãº",
	"Ã±",
	"Ã\u008d",
	"Ã\u009a",
	"�",
}

// Anomaly 疑似编码错误的位置
type Anomaly struct {
	Location string `json:"location"`
	Snippet  string `json:"snippet"`
}

// ContainsMojibake 字符串是否含有乱码片段
func ContainsMojibake(s string) bool {
	for _, p := range mojibakePatterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// ScanMojibake 遍历全部字符串叶子，返回最多 limit 个疑似乱码位置
func ScanMojibake(v any, limit int) []Anomaly {
	if limit <= 0 {
		limit = DefaultAnomalyLimit
	}
	var hits []Anomaly
	scan(v, "$", &hits, limit)
	return hits
}

func scan(v any, path string, hits *[]Anomaly, limit int) {
	if len(*hits) >= limit {
		return
	}
	switch val := v.(type) {
	case string:
		if ContainsMojibake(val) {
			*hits = append(*hits, Anomaly{Location: path, Snippet: snippet(val)})
		}
	case *utils.Object:
		for pair := val.Oldest(); pair != nil && len(*hits) < limit; pair = pair.Next() {
			scan(pair.Value, path+"."+pair.Key, hits, limit)
		}
	case map[string]any:
		for _, key := range utils.SortedKeys(val) {
			if len(*hits) >= limit {
				return
			}
			scan(val[key], path+"."+key, hits, limit)
		}
	case []any:
		for i, item := range val {
			if len(*hits) >= limit {
				return
			}
			scan(item, fmt.Sprintf("%s[%d]", path, i), hits, limit)
		}
	}
}

func snippet(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	runes := []rune(s)
	if len(runes) > maxSnippetLen {
		return string(runes[:maxSnippetLen-3]) + "..."
	}
	return s
}
