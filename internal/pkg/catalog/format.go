package catalog

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/gicatesis/backend/internal/pkg/formatindex"
	"github.com/gicatesis/backend/internal/utils"
)

const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldNumber   = "number"
	FieldDate     = "date"
	FieldSelect   = "select"
	FieldBoolean  = "boolean"
)

// ValidFieldTypes 允许的字段类型
var ValidFieldTypes = map[string]struct{}{
	FieldText:     {},
	FieldTextarea: {},
	FieldNumber:   {},
	FieldDate:     {},
	FieldSelect:   {},
	FieldBoolean:  {},
}

// Field 生成向导中的输入字段
type Field struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Required   bool   `json:"required"`
	Default    any    `json:"default"`
	Options    any    `json:"options,omitempty"`
	Validation any    `json:"validation,omitempty"`
	Order      any    `json:"order"`
	Section    string `json:"section,omitempty"`
}

// Asset 格式引用的静态资源
type Asset struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	OriginalPath string `json:"original_path,omitempty"`
}

// Rules 排版规则
type Rules struct {
	Margins     any `json:"margins"`
	Font        any `json:"font"`
	LineSpacing any `json:"lineSpacing"`
}

// TemplateRef 格式使用的模板，Path 仅在引用了 .docx/.dotx 文件时存在
type TemplateRef struct {
	Kind string
	Path string
}

// Format 规范化后的格式定义
type Format struct {
	ID           string
	Title        string
	University   string
	Category     string
	DocumentType string
	Version      string
	Fields       []Field
	Assets       []Asset
	Template     *TemplateRef
	Rules        *Rules
	Publishable  bool
	SourcePath   string
	Raw          *utils.Object
}

// FromDefinition 由索引条目与已加载的定义构建规范化格式
// _meta 中的 id/title/university/category/documentType 优先
func FromDefinition(entry formatindex.Entry, raw *utils.Object) Format {
	if raw == nil {
		raw = utils.NewObject()
	}
	meta, _ := utils.ChildObject(raw, "_meta")

	f := Format{
		ID:           firstNonEmpty(utils.FirstString(meta, "id"), entry.ID),
		Title:        firstNonEmpty(utils.FirstString(meta, "title"), entry.Title),
		University:   firstNonEmpty(utils.FirstString(meta, "university"), entry.Uni),
		Category:     firstNonEmpty(utils.FirstString(meta, "category"), entry.Category),
		DocumentType: firstNonEmpty(utils.FirstString(meta, "documentType", "tipo_documento"), entry.Enfoque),
		Version:      utils.FirstString(meta, "version"),
		Fields:       extractFields(raw),
		Assets:       extractAssets(raw, entry.Uni),
		Template:     extractTemplate(raw, entry.Path),
		Rules:        extractRules(raw),
		Publishable:  IsPublishable(raw),
		SourcePath:   entry.Path,
		Raw:          raw,
	}
	return f
}

func extractFields(raw *utils.Object) []Field {
	fields := make([]Field, 0)
	order := 0

	if caratula, ok := utils.ChildObject(raw, "caratula"); ok {
		for pair := caratula.Oldest(); pair != nil; pair = pair.Next() {
			if strings.HasPrefix(pair.Key, "_") {
				continue
			}
			order++
			fields = append(fields, Field{
				Name:     pair.Key,
				Label:    HumanizeLabel(pair.Key),
				Type:     InferFieldType(pair.Key, pair.Value),
				Required: false,
				Default:  scalarOrNil(pair.Value),
				Order:    order,
			})
		}
	}

	for _, key := range []string{"campos", "fields"} {
		v, ok := raw.Get(key)
		if !ok {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			obj, ok := utils.AsObject(item)
			if !ok {
				continue
			}
			order++
			fields = append(fields, fieldFromObject(obj, order))
		}
	}
	return fields
}

func fieldFromObject(obj *utils.Object, order int) Field {
	f := Field{
		Name:    utils.FirstString(obj, "name"),
		Label:   utils.FirstString(obj, "label"),
		Type:    FieldText,
		Section: utils.FirstString(obj, "section"),
		Order:   order,
	}
	if v, ok := obj.Get("type"); ok {
		f.Type = utils.Stringify(v)
	}
	if f.Label == "" {
		f.Label = f.Name
	}
	if v, ok := obj.Get("required"); ok {
		f.Required, _ = v.(bool)
	}
	if v, ok := obj.Get("default"); ok {
		f.Default = v
	}
	if v, ok := obj.Get("options"); ok && v != nil {
		f.Options = v
	}
	if v, ok := obj.Get("validation"); ok && v != nil {
		f.Validation = v
	}
	if v, ok := obj.Get("order"); ok && v != nil {
		f.Order = v
	}
	return f
}

// InferFieldType 依据键名与值推断字段类型
// 优先级：日期 > 数字 > 多行文本 > 布尔 > 文本
func InferFieldType(key string, value any) string {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "fecha") || strings.Contains(k, "date"):
		return FieldDate
	case strings.Contains(k, "numero") || strings.Contains(k, "number") || isNumber(value):
		return FieldNumber
	case strings.Contains(k, "descripcion") || strings.Contains(k, "observ") || strings.Contains(k, "notas"):
		return FieldTextarea
	}
	if _, ok := value.(bool); ok {
		return FieldBoolean
	}
	return FieldText
}

// HumanizeLabel 将技术键名转换为可读标签
func HumanizeLabel(key string) string {
	label := strings.NewReplacer("_", " ", "-", " ").Replace(key)
	words := strings.Fields(label)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	runes := []rune(strings.ToLower(w))
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}

func extractAssets(raw *utils.Object, uni string) []Asset {
	assets := make([]Asset, 0)
	config, ok := utils.ChildObject(raw, "configuracion")
	if !ok {
		return assets
	}
	if logo := utils.FirstString(config, "ruta_logo"); logo != "" {
		assets = append(assets, Asset{
			ID:           uni + ":logo:main",
			Kind:         "logo",
			OriginalPath: logo,
		})
	}
	return assets
}

// extractTemplate 配置了生成器或模板时返回 docx 类型；
// plantilla 指向 .docx/.dotx 文件时同时解析其路径，用于内容哈希
func extractTemplate(raw *utils.Object, sourcePath string) *TemplateRef {
	config, ok := utils.ChildObject(raw, "configuracion")
	if !ok {
		return nil
	}
	generator := utils.FirstString(config, "generator")
	plantilla := utils.FirstString(config, "plantilla")
	if generator == "" && plantilla == "" {
		return nil
	}

	templatePath := ""
	ext := strings.ToLower(filepath.Ext(plantilla))
	if ext == ".docx" || ext == ".dotx" {
		templatePath = plantilla
		if !filepath.IsAbs(templatePath) && sourcePath != "" {
			templatePath = filepath.Join(filepath.Dir(sourcePath), templatePath)
		}
	}
	return &TemplateRef{Kind: "docx", Path: templatePath}
}

func extractRules(raw *utils.Object) *Rules {
	config, ok := utils.ChildObject(raw, "configuracion")
	if !ok {
		return nil
	}
	found := false
	for _, key := range []string{"margenes", "margins", "fuente", "font", "interlineado"} {
		if _, ok := config.Get(key); ok {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	return &Rules{
		Margins:     firstTruthy(config, "margenes", "margins"),
		Font:        firstTruthy(config, "fuente", "font"),
		LineSpacing: firstTruthy(config, "interlineado", "lineSpacing"),
	}
}

func firstTruthy(obj *utils.Object, keys ...string) any {
	for _, key := range keys {
		if v, ok := obj.Get(key); ok && truthy(v) {
			return v
		}
	}
	return nil
}

// truthy JSON 值的真值判断：空串、0、false、null、空容器为假
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	case []any:
		return len(val) > 0
	case *utils.Object:
		return val.Len() > 0
	default:
		return true
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case json.Number, float64, float32, int, int64:
		return true
	}
	return false
}

func scalarOrNil(v any) any {
	switch v.(type) {
	case string, bool, json.Number, float64, int:
		return v
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
