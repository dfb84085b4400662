package formatindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gicatesis/backend/internal/pkg/registry"
	"github.com/gicatesis/backend/internal/utils"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

const (
	categoryRoot = "general"
	alertsFile   = "alerts.json"
	sampleSuffix = ".sample.json"
)

var ErrNotFound = errors.New("format not found")

// ParseError 源文件不是合法 JSON
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Entry 发现阶段得到的格式索引条目
type Entry struct {
	ID       string `json:"id"`
	Uni      string `json:"uni"`
	Category string `json:"category"`
	Enfoque  string `json:"enfoque"`
	Path     string `json:"path"`
	Title    string `json:"title"`
	// Data 数组源文件中该条目对应的元素；对象源文件为 nil
	Data     any   `json:"-"`
	ParseErr error `json:"-"`
}

// Index 基于机构注册中心的格式索引，每次调用都重新扫描磁盘
type Index struct {
	registry registry.Registry
}

// New 创建格式索引
func New(reg registry.Registry) *Index {
	return &Index{registry: reg}
}

// Registry 返回底层机构注册中心
func (ix *Index) Registry() registry.Registry {
	return ix.registry
}

// Discover 扫描单个机构的数据目录
func (ix *Index) Discover(ctx context.Context, uni string) ([]Entry, error) {
	uni = strings.ToLower(strings.TrimSpace(uni))
	if uni == "" {
		uni = ix.registry.DefaultCode()
	}
	org, err := ix.registry.Get(uni)
	if err != nil {
		return nil, err
	}
	return discoverDir(ctx, org.Code, org.DataDir)
}

// DiscoverAll 并发扫描所有已注册机构，合并后排序
func (ix *Index) DiscoverAll(ctx context.Context) ([]Entry, error) {
	orgs := ix.registry.List()
	results := make([][]Entry, len(orgs))

	g, gctx := errgroup.WithContext(ctx)
	for i, org := range orgs {
		g.Go(func() error {
			entries, err := discoverDir(gctx, org.Code, org.DataDir)
			if err != nil {
				return fmt.Errorf("discover %s: %w", org.Code, err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Entry
	for _, entries := range results {
		all = append(all, entries...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Uni != all[j].Uni {
			return all[i].Uni < all[j].Uni
		}
		return lessEntry(all[i], all[j])
	})
	return all, nil
}

// Find 按规范标识查找条目；机构未注册或无匹配时返回 nil, nil
func (ix *Index) Find(ctx context.Context, id string) (*Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	uni := ix.registry.DefaultCode()
	if head, _, found := strings.Cut(id, "-"); found {
		uni = strings.ToLower(strings.TrimSpace(head))
	}
	normalized := NormalizeID(id, uni)

	entries, err := ix.Discover(ctx, uni)
	if errors.Is(err, registry.ErrOrganizationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == normalized {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// Load 加载格式定义，缺少 _meta 时补充元数据块
func (ix *Index) Load(ctx context.Context, id string) (*utils.Object, error) {
	entry, err := ix.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return LoadEntry(*entry)
}

// LoadEntry 读取条目对应的定义
func LoadEntry(entry Entry) (*utils.Object, error) {
	data := entry.Data
	if data == nil {
		if entry.ParseErr != nil {
			return nil, &ParseError{Path: entry.Path, Err: entry.ParseErr}
		}
		parsed, err := utils.ParseJSONFile(entry.Path)
		if err != nil {
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, entry.ID)
			}
			return nil, &ParseError{Path: entry.Path, Err: err}
		}
		data = parsed
	}
	data = utils.DeepCopy(data)

	if list, ok := data.([]any); ok {
		data = selectElement(list, entry)
	}

	var payload *utils.Object
	if obj, ok := utils.AsObject(data); ok {
		payload = obj
		if _, has := payload.Get("_meta"); !has {
			meta := utils.NewObject()
			meta.Set("format_id", entry.ID)
			meta.Set("uni", entry.Uni)
			meta.Set("categoria", entry.Category)
			meta.Set("enfoque", entry.Enfoque)
			meta.Set("titulo", entry.Title)
			meta.Set("path", entry.Path)
			payload.Set("_meta", meta)
		}
	} else {
		meta := utils.NewObject()
		meta.Set("format_id", entry.ID)
		meta.Set("uni", entry.Uni)
		meta.Set("path", entry.Path)
		payload = utils.NewObject()
		payload.Set("_meta", meta)
		payload.Set("data", data)
	}

	warnMojibake(payload, entry)
	return payload, nil
}

// selectElement 数组源文件中选出标识匹配的元素，找不到时返回整个数组
func selectElement(list []any, entry Entry) any {
	for _, item := range list {
		obj, ok := utils.AsObject(item)
		if !ok {
			continue
		}
		raw := utils.FirstString(obj, "id", "format_id")
		if raw != "" && NormalizeID(raw, entry.Uni) == entry.ID {
			return obj
		}
	}
	return list
}

func warnMojibake(payload any, entry Entry) {
	hits := ScanMojibake(payload, DefaultAnomalyLimit)
	if len(hits) == 0 {
		return
	}
	var b strings.Builder
	for _, h := range hits {
		b.WriteString("\n  - ")
		b.WriteString(h.Location)
		b.WriteString(": ")
		b.WriteString(h.Snippet)
	}
	klog.Warningf("possible mojibake in %s (%s):%s", entry.ID, entry.Path, b.String())
}

// discoverDir 扫描目录；WalkDir 按字典序遍历，重复标识保留首个
func discoverDir(ctx context.Context, uni, dataDir string) ([]Entry, error) {
	if _, err := os.Stat(dataDir); err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0)
	seen := make(map[string]struct{})
	add := func(e Entry) {
		if e.ID == "" {
			return
		}
		if _, dup := seen[e.ID]; dup {
			klog.V(6).Infof("duplicate format id skipped: %s (%s)", e.ID, e.Path)
			return
		}
		seen[e.ID] = struct{}{}
		entries = append(entries, e)
	}

	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dataDir, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".json") || isIgnored(d.Name()) {
			return nil
		}

		for _, e := range entriesFromFile(uni, rel, path) {
			add(e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool { return lessEntry(entries[i], entries[j]) })
	return entries, nil
}

func isIgnored(name string) bool {
	return name == alertsFile || strings.HasSuffix(name, sampleSuffix) || strings.HasPrefix(name, "_")
}

func entriesFromFile(uni, rel, path string) []Entry {
	category := categoryRoot
	if dir := filepath.Dir(rel); dir != "." {
		category = strings.ToLower(filepath.Base(dir))
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	data, parseErr := utils.ParseJSONFile(path)
	if parseErr != nil {
		klog.Warningf("invalid JSON kept in index without content: %s: %v", path, parseErr)
		id := NormalizeID(stem, uni)
		return []Entry{{
			ID:       id,
			Uni:      uni,
			Category: category,
			Enfoque:  DeriveEnfoque(Tokens(strings.ToLower(stem))),
			Path:     absPath,
			Title:    Humanize(id, uni),
			ParseErr: parseErr,
		}}
	}

	if list, ok := data.([]any); ok {
		var out []Entry
		for idx, item := range list {
			obj, ok := utils.AsObject(item)
			if !ok {
				continue
			}
			raw := utils.FirstString(obj, "id", "format_id")
			if raw == "" {
				raw = fmt.Sprintf("%s-%d", stem, idx+1)
			}
			id := NormalizeID(raw, uni)
			enfoque := utils.FirstString(obj, "enfoque")
			if enfoque == "" {
				enfoque = DeriveEnfoque(Tokens(strings.ToLower(raw)))
			}
			title := utils.FirstString(obj, "titulo", "title")
			if title == "" {
				title = Humanize(id, uni)
			}
			out = append(out, Entry{
				ID:       id,
				Uni:      uni,
				Category: strings.ToLower(firstNonEmpty(utils.FirstString(obj, "tipo_formato", "categoria"), category)),
				Enfoque:  strings.ToLower(enfoque),
				Path:     absPath,
				Title:    title,
				Data:     obj,
			})
		}
		return out
	}

	raw := stem
	title := ""
	if obj, ok := utils.AsObject(data); ok {
		raw = firstNonEmpty(utils.FirstString(obj, "id"), stem)
		title = utils.FirstString(obj, "titulo", "title")
	}
	id := NormalizeID(raw, uni)
	if title == "" {
		title = Humanize(id, uni)
	}
	return []Entry{{
		ID:       id,
		Uni:      uni,
		Category: category,
		Enfoque:  DeriveEnfoque(Tokens(strings.ToLower(stem))),
		Path:     absPath,
		Title:    title,
	}}
}

func lessEntry(a, b Entry) bool {
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	if a.Enfoque != b.Enfoque {
		return a.Enfoque < b.Enfoque
	}
	at, bt := strings.ToLower(a.Title), strings.ToLower(b.Title)
	if at != bt {
		return at < bt
	}
	return a.ID < b.ID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
