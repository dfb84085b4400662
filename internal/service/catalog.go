package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	formatdto "github.com/gicatesis/backend/internal/dto/format"
	"github.com/gicatesis/backend/internal/pkg/cache"
	"github.com/gicatesis/backend/internal/pkg/catalog"
	"github.com/gicatesis/backend/internal/pkg/formatindex"
	"github.com/gicatesis/backend/internal/pkg/registry"
	"github.com/gicatesis/backend/internal/utils"
	"k8s.io/klog/v2"
)

const (
	assetURLPrefix    = "/api/v1/assets/"
	templateURIPrefix = "gicatesis://templates/"
	hashKeyPrefix     = "hash:"
)

// CatalogService 格式目录服务
type CatalogService interface {
	// List 可发布格式的摘要列表及目录版本
	List(ctx context.Context, filter formatdto.ListFilter) ([]formatdto.Summary, string, error)

	// Detail 格式详情及完整哈希
	Detail(ctx context.Context, id string) (*formatdto.Detail, string, error)

	// Definition 原始格式定义
	Definition(ctx context.Context, id string) (*utils.Object, error)

	// Version 目录版本
	Version(ctx context.Context) (*formatdto.VersionResponse, error)

	// Validate 校验整个目录
	Validate(ctx context.Context) (*formatdto.ValidationResponse, error)

	// AssetPath 将逻辑资源路径映射为静态目录中的文件
	AssetPath(assetPath string) (string, error)

	// Invalidate 清空哈希缓存
	Invalidate(ctx context.Context) error
}

type catalogService struct {
	index     *formatindex.Index
	store     cache.Store
	staticDir string
	now       func() time.Time
}

// NewCatalogService 创建目录服务，store 为空时使用内存缓存
func NewCatalogService(index *formatindex.Index, store cache.Store, staticDir string) CatalogService {
	if store == nil {
		store = cache.NewMemoryStore(0)
	}
	return &catalogService{index: index, store: store, staticDir: staticDir, now: time.Now}
}

// loadFormats 发现并加载格式；解析失败的条目跳过
func (s *catalogService) loadFormats(ctx context.Context, uni string, includeUnpublished bool) ([]catalog.Format, error) {
	var (
		entries []formatindex.Entry
		err     error
	)
	if uni != "" {
		entries, err = s.index.Discover(ctx, strings.ToLower(uni))
		if errors.Is(err, registry.ErrOrganizationNotFound) {
			return []catalog.Format{}, nil
		}
	} else {
		entries, err = s.index.DiscoverAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	formats := make([]catalog.Format, 0, len(entries))
	for _, entry := range entries {
		if entry.ParseErr != nil {
			klog.V(6).Infof("跳过无法解析的格式: id=%s, error=%v", entry.ID, entry.ParseErr)
			continue
		}
		raw, err := formatindex.LoadEntry(entry)
		if err != nil {
			klog.V(6).Infof("跳过无法加载的格式: id=%s, error=%v", entry.ID, err)
			continue
		}
		f := catalog.FromDefinition(entry, raw)
		if includeUnpublished || f.Publishable {
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// hash 读取或计算格式哈希，缓存以源文件修改时间判断新鲜度
func (s *catalogService) hash(ctx context.Context, f catalog.Format) string {
	mtime := sourceMTime(f)
	key := hashKeyPrefix + f.ID
	if v, ok := cache.Lookup(ctx, s.store, key, mtime); ok {
		return v
	}
	h := catalog.EntryHash(f)
	if err := s.store.Set(ctx, key, cache.Item{Value: h, SourceMTime: mtime}); err != nil {
		klog.Warningf("写入哈希缓存失败: id=%s, error=%v", f.ID, err)
	}
	return h
}

// version 目录版本，复用缓存的哈希
func (s *catalogService) version(ctx context.Context, formats []catalog.Format) string {
	if len(formats) == 0 {
		return catalog.EmptyCatalogVersion()
	}
	pairs := make([]string, 0, len(formats))
	for _, f := range formats {
		pairs = append(pairs, f.ID+":"+s.hash(ctx, f))
	}
	return catalog.VersionFromPairs(pairs)
}

func (s *catalogService) List(ctx context.Context, filter formatdto.ListFilter) ([]formatdto.Summary, string, error) {
	formats, err := s.loadFormats(ctx, filter.University, false)
	if err != nil {
		return nil, "", err
	}

	filtered := formats[:0]
	for _, f := range formats {
		if filter.Category != "" && !strings.EqualFold(f.Category, filter.Category) {
			continue
		}
		if filter.DocumentType != "" && (f.DocumentType == "" || !strings.EqualFold(f.DocumentType, filter.DocumentType)) {
			continue
		}
		filtered = append(filtered, f)
	}

	summaries := make([]formatdto.Summary, 0, len(filtered))
	for _, f := range filtered {
		summaries = append(summaries, formatdto.Summary{
			ID:           f.ID,
			Title:        f.Title,
			University:   f.University,
			Category:     f.Category,
			DocumentType: f.DocumentType,
			Version:      catalog.ShortVersion(s.hash(ctx, f)),
		})
	}
	return summaries, s.version(ctx, filtered), nil
}

func (s *catalogService) Detail(ctx context.Context, id string) (*formatdto.Detail, string, error) {
	f, err := s.findFormat(ctx, id)
	if err != nil {
		return nil, "", err
	}
	h := s.hash(ctx, *f)
	return toDetail(*f, h), h, nil
}

// findFormat 先按索引直接定位，_meta 覆盖了 ID 时退回全量扫描
func (s *catalogService) findFormat(ctx context.Context, id string) (*catalog.Format, error) {
	entry, err := s.index.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry != nil && entry.ParseErr == nil {
		if raw, err := formatindex.LoadEntry(*entry); err == nil {
			f := catalog.FromDefinition(*entry, raw)
			if f.ID == id && f.Publishable {
				return &f, nil
			}
		}
	}

	formats, err := s.loadFormats(ctx, "", false)
	if err != nil {
		return nil, err
	}
	for i := range formats {
		if formats[i].ID == id {
			return &formats[i], nil
		}
	}
	return nil, ErrFormatNotFound
}

func (s *catalogService) Definition(ctx context.Context, id string) (*utils.Object, error) {
	raw, err := s.index.Load(ctx, id)
	if err != nil {
		if errors.Is(err, formatindex.ErrNotFound) {
			return nil, ErrFormatNotFound
		}
		return nil, err
	}
	return raw, nil
}

func (s *catalogService) Version(ctx context.Context) (*formatdto.VersionResponse, error) {
	formats, err := s.loadFormats(ctx, "", false)
	if err != nil {
		return nil, err
	}
	return &formatdto.VersionResponse{
		Version:     s.version(ctx, formats),
		GeneratedAt: s.now().UTC().Format(time.RFC3339Nano),
	}, nil
}

func (s *catalogService) Validate(ctx context.Context) (*formatdto.ValidationResponse, error) {
	formats, err := s.loadFormats(ctx, "", false)
	if err != nil {
		return nil, err
	}
	report := catalog.Validate(formats)

	resp := &formatdto.ValidationResponse{
		TotalFormats:   report.Total,
		ValidFormats:   report.Valid,
		InvalidFormats: report.Invalid,
		Errors:         make([]formatdto.ValidationError, 0, len(report.Errors)),
	}
	for _, issue := range report.Errors {
		resp.Errors = append(resp.Errors, formatdto.ValidationError{
			FormatID:  issue.FormatID,
			Field:     issue.Field,
			Error:     issue.Message,
			ErrorType: issue.Type,
		})
	}
	return resp, nil
}

// AssetPath 拒绝路径穿越；logos/<code> 与 <code>/logo/main 映射到 assets/Logo<CODE>.png
func (s *catalogService) AssetPath(assetPath string) (string, error) {
	assetPath = strings.TrimPrefix(filepath.ToSlash(assetPath), "/")
	if assetPath == "" || strings.Contains(assetPath, "..") || filepath.IsAbs(assetPath) {
		return "", ErrInvalidAssetPath
	}

	parts := strings.Split(assetPath, "/")
	switch {
	case len(parts) == 2 && parts[0] == "logos":
		assetPath = logoAsset(strings.TrimSuffix(parts[1], filepath.Ext(parts[1])))
	case len(parts) == 3 && parts[1] == "logo" && parts[2] == "main":
		assetPath = logoAsset(parts[0])
	}

	base, err := filepath.Abs(s.staticDir)
	if err != nil {
		return "", err
	}
	target := filepath.Join(base, filepath.FromSlash(assetPath))
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrAssetForbidden
	}

	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return "", ErrAssetNotFound
	}
	return target, nil
}

func logoAsset(code string) string {
	if strings.EqualFold(code, "generic") {
		return "assets/LogoGeneric.png"
	}
	return "assets/Logo" + strings.ToUpper(code) + ".png"
}

func (s *catalogService) Invalidate(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// sourceMTime 定义文件与模板文件中较新的修改时间
func sourceMTime(f catalog.Format) time.Time {
	var latest time.Time
	paths := []string{f.SourcePath}
	if f.Template != nil && f.Template.Path != "" {
		paths = append(paths, f.Template.Path)
	}
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest
}

// toDetail 映射为详情 DTO：非法类型与缺少选项的 select 均降级为 text
func toDetail(f catalog.Format, hash string) *formatdto.Detail {
	detail := &formatdto.Detail{
		ID:           f.ID,
		Title:        f.Title,
		University:   f.University,
		Category:     f.Category,
		DocumentType: f.DocumentType,
		Version:      catalog.ShortVersion(hash),
		Fields:       make([]formatdto.Field, 0, len(f.Fields)),
		Assets:       make([]formatdto.AssetRef, 0, len(f.Assets)),
		Definition:   f.Raw,
	}
	if f.Raw == nil {
		detail.Definition = utils.NewObject()
	}

	for _, field := range f.Fields {
		typ := field.Type
		if _, ok := catalog.ValidFieldTypes[typ]; !ok {
			typ = catalog.FieldText
		}
		var options []string
		if typ == catalog.FieldSelect {
			options = stringOptions(field.Options)
			if len(options) == 0 {
				typ = catalog.FieldText
			}
		}
		label := field.Label
		if label == "" {
			label = field.Name
		}
		detail.Fields = append(detail.Fields, formatdto.Field{
			Name:       field.Name,
			Label:      label,
			Type:       typ,
			Required:   field.Required,
			Default:    field.Default,
			Options:    options,
			Validation: field.Validation,
			Order:      field.Order,
			Section:    field.Section,
		})
	}

	for _, asset := range f.Assets {
		kind := asset.Kind
		if kind == "" {
			kind = "unknown"
		}
		detail.Assets = append(detail.Assets, formatdto.AssetRef{
			ID:   asset.ID,
			Kind: kind,
			URL:  assetURLPrefix + strings.ReplaceAll(asset.ID, ":", "/"),
		})
	}

	if f.Template != nil && f.Template.Kind != "" {
		detail.TemplateRef = &formatdto.TemplateRef{Kind: f.Template.Kind, URI: templateURIPrefix + f.ID}
	}
	if f.Rules != nil {
		detail.Rules = &formatdto.RuleSet{Margins: f.Rules.Margins, Font: f.Rules.Font, LineSpacing: f.Rules.LineSpacing}
	}
	return detail
}

func stringOptions(options any) []string {
	items, ok := options.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := utils.Stringify(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
