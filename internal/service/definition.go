package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gicatesis/backend/internal/pkg/formatindex"
	"github.com/gicatesis/backend/internal/pkg/registry"
	"github.com/gicatesis/backend/internal/pkg/resolver"
	"github.com/gicatesis/backend/internal/pkg/sanitizer"
	"github.com/gicatesis/backend/internal/pkg/sectionindex"
	"github.com/gicatesis/backend/internal/utils"
)

// aiContentKey 模拟模式下附加到章节节点上的内容字段
const aiContentKey = "_ai_content"

// DocumentRenderer 调用外部生成脚本
type DocumentRenderer interface {
	Render(ctx context.Context, script, inputJSON, outputDocx string) error
}

// PDFConverter DOCX 转 PDF
type PDFConverter interface {
	Convert(ctx context.Context, docxPath, pdfPath string) error
}

// resolvedFormat 已定位并加载的格式定义
type resolvedFormat struct {
	entry  formatindex.Entry
	org    *registry.Organization
	script string
	raw    *utils.Object
}

// resolveFormat 查找并加载格式，同时解析所属机构与生成脚本
func resolveFormat(ctx context.Context, index *formatindex.Index, formatID string) (*resolvedFormat, error) {
	entry, err := index.Find(ctx, formatID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrFormatNotFound, formatID)
	}
	raw, err := formatindex.LoadEntry(*entry)
	if err != nil {
		return nil, err
	}
	org, err := index.Registry().Get(entry.Uni)
	if err != nil {
		return nil, err
	}
	script, err := org.Generator(entry.Category)
	if err != nil {
		return nil, err
	}
	return &resolvedFormat{entry: *entry, org: org, script: script, raw: raw}, nil
}

// simulationInput 模拟模式的生成输入
type simulationInput struct {
	definition any
	entries    []sectionindex.Entry
	lookup     resolver.Lookup
}

// prepareSimulation 清洗定义、合并用户值、建立章节索引并把解析出的内容写入 _ai_content
func prepareSimulation(raw *utils.Object, values map[string]any, sections []resolver.AISection) simulationInput {
	sanitized := sanitizer.Sanitize(raw)
	mergeValues(sanitized, values)

	lookup := resolver.BuildLookup(sections)
	entries := sectionindex.Visit(sanitized, func(entry sectionindex.Entry, node *utils.Object) {
		node.Set(aiContentKey, resolver.Resolve(entry, lookup))
	})
	return simulationInput{definition: sanitized, entries: entries, lookup: lookup}
}

// prepareFinal 复制原始定义并合并用户值
func prepareFinal(raw *utils.Object, values map[string]any) any {
	definition := utils.DeepCopy(raw)
	mergeValues(definition, values)
	return definition
}

// mergeValues 用户值写入 caratula，并替换全文中的 [KEY]、[key]、{key}、<key> 占位符
func mergeValues(definition any, values map[string]any) {
	if len(values) == 0 {
		return
	}
	obj, ok := utils.AsObject(definition)
	if !ok {
		return
	}
	keys := utils.SortedKeys(values)

	if caratula, ok := utils.ChildObject(obj, "caratula"); ok {
		for _, key := range keys {
			caratula.Set(key, utils.FromValue(values[key]))
		}
	}

	pairs := make([]string, 0, len(keys)*8)
	for _, key := range keys {
		text := placeholderText(values[key])
		for _, pattern := range []string{"[" + strings.ToUpper(key) + "]", "[" + key + "]", "{" + key + "}", "<" + key + ">"} {
			pairs = append(pairs, pattern, text)
		}
	}
	replacePlaceholders(obj, strings.NewReplacer(pairs...))
}

func placeholderText(v any) string {
	if s := utils.Stringify(v); s != "" || v == nil {
		return s
	}
	return utils.ToJSON(v)
}

func replacePlaceholders(node any, r *strings.Replacer) any {
	switch v := node.(type) {
	case string:
		return r.Replace(v)
	case *utils.Object:
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			pair.Value = replacePlaceholders(pair.Value, r)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = replacePlaceholders(item, r)
		}
		return v
	default:
		return node
	}
}

// writeInputJSON 把生成输入写入目录中的临时 JSON 文件
func writeInputJSON(dir, pattern string, definition any) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create input json: %w", err)
	}
	path := f.Name()
	f.Close()
	if err := utils.WriteJSONFile(path, definition); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// simulationFilename <UNI>_<CATEGORIA>_SIMULACION.docx
func simulationFilename(entry formatindex.Entry) string {
	return fmt.Sprintf("%s_%s_SIMULACION.docx", strings.ToUpper(entry.Uni), strings.ToUpper(entry.Category))
}

// documentFilename <UNI>_<CATEGORIA>_<ENFOQUE>.docx
func documentFilename(entry formatindex.Entry) string {
	return fmt.Sprintf("%s_%s_%s.docx", strings.ToUpper(entry.Uni), strings.ToUpper(entry.Category), strings.ToUpper(entry.Enfoque))
}

// pdfFilename <UNI>_<CATEGORIA>.pdf
func pdfFilename(entry formatindex.Entry) string {
	return fmt.Sprintf("%s_%s.pdf", strings.ToUpper(entry.Uni), strings.ToUpper(entry.Category))
}

// safeName 把格式 ID 转成可用作文件名的形式
func safeName(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(id)
}

func removeQuietly(paths ...string) {
	for _, p := range paths {
		if p != "" {
			os.Remove(p)
		}
	}
}

func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
