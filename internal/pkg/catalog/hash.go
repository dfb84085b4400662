package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
	"strings"

	"k8s.io/klog/v2"
)

// ShortVersionLen 摘要中展示的短版本长度
const ShortVersionLen = 16

type assetProjection struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// hashProjection 参与哈希的字段；源文件路径等内部信息不参与
type hashProjection struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	University   string            `json:"university"`
	Category     string            `json:"category"`
	DocumentType string            `json:"document_type"`
	Fields       []Field           `json:"fields"`
	Assets       []assetProjection `json:"assets"`
	Rules        *Rules            `json:"rules"`
}

// EntryHash 计算格式内容的 SHA-256（十六进制）
// 规范化投影之后追加模板文件字节；模板不可读时忽略
func EntryHash(f Format) string {
	projection := hashProjection{
		ID:           f.ID,
		Title:        f.Title,
		University:   f.University,
		Category:     f.Category,
		DocumentType: f.DocumentType,
		Fields:       f.Fields,
		Assets:       make([]assetProjection, 0, len(f.Assets)),
		Rules:        f.Rules,
	}
	if projection.Fields == nil {
		projection.Fields = []Field{}
	}
	for _, a := range f.Assets {
		projection.Assets = append(projection.Assets, assetProjection{ID: a.ID, Kind: a.Kind})
	}

	hasher := sha256.New()
	canonical, err := CanonicalJSON(projection)
	if err != nil {
		klog.Errorf("failed to canonicalize format %s: %v", f.ID, err)
	}
	hasher.Write(canonical)

	if f.Template != nil && f.Template.Path != "" {
		if data, err := os.ReadFile(f.Template.Path); err == nil {
			hasher.Write(data)
		} else {
			klog.V(6).Infof("template not readable, skipped in hash: %s: %v", f.Template.Path, err)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// CatalogVersion 目录整体版本：各格式 "id:hash" 排序后以换行连接再取 SHA-256
func CatalogVersion(formats []Format) string {
	if len(formats) == 0 {
		return EmptyCatalogVersion()
	}
	pairs := make([]string, 0, len(formats))
	for _, f := range formats {
		pairs = append(pairs, f.ID+":"+EntryHash(f))
	}
	return VersionFromPairs(pairs)
}

// VersionFromPairs 由已计算的 "id:hash" 对得到目录版本
func VersionFromPairs(pairs []string) string {
	if len(pairs) == 0 {
		return EmptyCatalogVersion()
	}
	sorted := append([]string(nil), pairs...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

// EmptyCatalogVersion 空目录的版本
func EmptyCatalogVersion() string {
	sum := sha256.Sum256([]byte("empty"))
	return hex.EncodeToString(sum[:])
}

// ShortVersion 截取哈希前缀
func ShortVersion(hash string) string {
	if len(hash) <= ShortVersionLen {
		return hash
	}
	return hash[:ShortVersionLen]
}
