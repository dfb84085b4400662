package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	formatdto "github.com/gicatesis/backend/internal/dto/format"
	"github.com/gicatesis/backend/internal/pkg/cache"
	"github.com/gicatesis/backend/internal/pkg/catalog"
	"github.com/gicatesis/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) (*catalogService, *cache.MemoryStore, string) {
	t.Helper()
	index, root := newTestIndex(t)
	store := cache.NewMemoryStore(0)
	svc := NewCatalogService(index, store, filepath.Join(root, "static")).(*catalogService)
	return svc, store, root
}

func TestCatalogListOnlyPublishable(t *testing.T) {
	svc, store, _ := newTestCatalog(t)
	ctx := context.Background()

	summaries, version, err := svc.List(ctx, formatdto.ListFilter{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "unac-informe-cuant", s.ID)
	assert.Equal(t, "Informe Cuantitativo", s.Title)
	assert.Equal(t, "unac", s.University)
	assert.Equal(t, "informe", s.Category)
	assert.Equal(t, "cuant", s.DocumentType)
	assert.Len(t, s.Version, catalog.ShortVersionLen)
	assert.Len(t, version, 64)
	assert.Equal(t, 1, store.Len(), "entry hash should be cached")

	// 第二次读取版本不变
	_, again, err := svc.List(ctx, formatdto.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, version, again)
}

func TestCatalogListFilters(t *testing.T) {
	svc, _, _ := newTestCatalog(t)
	ctx := context.Background()

	summaries, _, err := svc.List(ctx, formatdto.ListFilter{University: "UNAC", Category: "INFORME", DocumentType: "Cuant"})
	require.NoError(t, err)
	assert.Len(t, summaries, 1)

	summaries, version, err := svc.List(ctx, formatdto.ListFilter{Category: "maestria"})
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Equal(t, catalog.EmptyCatalogVersion(), version)

	summaries, _, err = svc.List(ctx, formatdto.ListFilter{University: "desconocida"})
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestCatalogDetail(t *testing.T) {
	svc, _, _ := newTestCatalog(t)
	ctx := context.Background()

	detail, hash, err := svc.Detail(ctx, "unac-informe-cuant")
	require.NoError(t, err)
	assert.Equal(t, catalog.ShortVersion(hash), detail.Version)

	require.Len(t, detail.Fields, 3)
	assert.Equal(t, "universidad", detail.Fields[0].Name)
	assert.Equal(t, "Titulo Tesis", detail.Fields[1].Label)
	assert.Equal(t, catalog.FieldDate, detail.Fields[2].Type)

	require.Len(t, detail.Assets, 1)
	assert.Equal(t, "/api/v1/assets/unac/logo/main", detail.Assets[0].URL)
	require.NotNil(t, detail.TemplateRef)
	assert.Equal(t, "gicatesis://templates/unac-informe-cuant", detail.TemplateRef.URI)
	require.NotNil(t, detail.Rules)
	assert.NotNil(t, detail.Rules.Margins)
	assert.NotNil(t, detail.Definition)

	_, _, err = svc.Detail(ctx, "unac-config")
	assert.True(t, errors.Is(err, ErrFormatNotFound), "unpublishable format must be hidden")
	_, _, err = svc.Detail(ctx, "unac-nada")
	assert.True(t, errors.Is(err, ErrFormatNotFound))
}

func TestToDetailDowngradesFieldTypes(t *testing.T) {
	f := catalog.Format{
		ID: "unac-x",
		Fields: []catalog.Field{
			{Name: "a", Type: "color"},
			{Name: "b", Type: catalog.FieldSelect},
			{Name: "c", Type: catalog.FieldSelect, Options: []any{"uno", "dos"}},
		},
	}
	detail := toDetail(f, "0123456789abcdef0123")
	assert.Equal(t, catalog.FieldText, detail.Fields[0].Type)
	assert.Equal(t, catalog.FieldText, detail.Fields[1].Type)
	assert.Nil(t, detail.Fields[1].Options)
	assert.Equal(t, catalog.FieldSelect, detail.Fields[2].Type)
	assert.Equal(t, []string{"uno", "dos"}, detail.Fields[2].Options)
	assert.Equal(t, "a", detail.Fields[0].Label)
	assert.Equal(t, "0123456789abcdef", detail.Version)
}

func TestCatalogHashCacheFollowsSourceMTime(t *testing.T) {
	svc, store, root := newTestCatalog(t)
	ctx := context.Background()

	_, first, err := svc.List(ctx, formatdto.ListFilter{})
	require.NoError(t, err)

	path := filepath.Join(root, "formats", "unac", "informe", "cuant.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	updated := []byte(string(data[:len(data)-1]) + `, "extra": {"x": 1}}`)
	require.NoError(t, os.WriteFile(path, updated, 0644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	// 写入时间早于源文件修改时间，缓存视为过期
	_, second, err := svc.List(ctx, formatdto.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, first, second, "hash projection ignores unrelated keys")

	require.NoError(t, svc.Invalidate(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestCatalogVersionAndValidate(t *testing.T) {
	svc, _, _ := newTestCatalog(t)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	version, err := svc.Version(ctx)
	require.NoError(t, err)
	_, listVersion, _ := svc.List(ctx, formatdto.ListFilter{})
	assert.Equal(t, listVersion, version.Version)
	assert.Equal(t, "2024-05-01T12:00:00Z", version.GeneratedAt)

	report, err := svc.Validate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalFormats)
	assert.Equal(t, 1, report.ValidFormats)
	assert.Equal(t, 0, report.InvalidFormats)
	assert.Empty(t, report.Errors)
}

func TestCatalogDefinition(t *testing.T) {
	svc, _, _ := newTestCatalog(t)

	raw, err := svc.Definition(context.Background(), "unac-informe-cuant")
	require.NoError(t, err)
	meta, ok := utils.ChildObject(raw, "_meta")
	require.True(t, ok)
	assert.Equal(t, "format", utils.FirstString(meta, "entity"))

	_, err = svc.Definition(context.Background(), "unac-missing")
	assert.True(t, errors.Is(err, ErrFormatNotFound))
}

func TestCatalogAssetPath(t *testing.T) {
	svc, _, root := newTestCatalog(t)
	writeFile(t, filepath.Join(root, "static", "assets", "LogoUNAC.png"), "png")
	writeFile(t, filepath.Join(root, "static", "assets", "LogoGeneric.png"), "png")

	path, err := svc.AssetPath("unac/logo/main")
	require.NoError(t, err)
	assert.Equal(t, "LogoUNAC.png", filepath.Base(path))

	path, err = svc.AssetPath("logos/generic.png")
	require.NoError(t, err)
	assert.Equal(t, "LogoGeneric.png", filepath.Base(path))

	_, err = svc.AssetPath("../secret.txt")
	assert.True(t, errors.Is(err, ErrInvalidAssetPath))
	_, err = svc.AssetPath("logos/uni.png")
	assert.True(t, errors.Is(err, ErrAssetNotFound))
	_, err = svc.AssetPath("assets")
	assert.True(t, errors.Is(err, ErrAssetNotFound), "directories are not served")
}
