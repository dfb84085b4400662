package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	formatdto "github.com/gicatesis/backend/internal/dto/format"
	"github.com/gicatesis/backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFormatRouter(catalog *mockCatalogService, preview *mockPreviewService) http.Handler {
	r, api := newTestRouter()
	NewFormatHandler(catalog, preview).RegisterRoutes(api)
	return r
}

func serve(h http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListFormatsSetsCacheHeaders(t *testing.T) {
	catalog := &mockCatalogService{
		summaries: []formatdto.Summary{{ID: "unac-informe-cuant", Title: "Informe", University: "unac", Category: "informe", Version: "abc"}},
		version:   "v123",
	}
	r := newFormatRouter(catalog, &mockPreviewService{})

	w := serve(r, http.MethodGet, "/api/v1/formats?university=UNAC&documentType=cuant", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"v123"`, w.Header().Get("ETag"))
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	assert.Equal(t, "UNAC", catalog.filter.University)
	assert.Equal(t, "cuant", catalog.filter.DocumentType)

	var got []formatdto.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 1)
	assert.Equal(t, "unac-informe-cuant", got[0].ID)
}

func TestListFormatsNotModified(t *testing.T) {
	r := newFormatRouter(&mockCatalogService{version: "v123"}, &mockPreviewService{})

	for _, header := range []string{`"v123"`, `v123`, `*`, `"old", W/"v123"`} {
		w := serve(r, http.MethodGet, "/api/v1/formats", map[string]string{"If-None-Match": header})
		assert.Equal(t, http.StatusNotModified, w.Code, "If-None-Match %s", header)
		assert.Empty(t, w.Body.String())
	}

	w := serve(r, http.MethodGet, "/api/v1/formats", map[string]string{"If-None-Match": `"other"`})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFormatVersionAndValidate(t *testing.T) {
	r := newFormatRouter(&mockCatalogService{version: "v1"}, &mockPreviewService{})

	w := serve(r, http.MethodGet, "/api/v1/formats/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=30", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Body.String(), `"version":"v1"`)

	w = serve(r, http.MethodGet, "/api/v1/formats/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_formats":0`)
}

func TestGetFormat(t *testing.T) {
	catalog := &mockCatalogService{
		detail: &formatdto.Detail{ID: "unac-informe-cuant", Title: "Informe", Fields: []formatdto.Field{}, Assets: []formatdto.AssetRef{}},
		hash:   "fullhash",
	}
	r := newFormatRouter(catalog, &mockPreviewService{})

	w := serve(r, http.MethodGet, "/api/v1/formats/unac-informe-cuant", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"fullhash"`, w.Header().Get("ETag"))

	w = serve(r, http.MethodGet, "/api/v1/formats/unac-informe-cuant", map[string]string{"If-None-Match": `"fullhash"`})
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/formats/unac-nada", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"format not found"}`, w.Body.String())
}

func TestFormatDataKeepsKeyOrder(t *testing.T) {
	catalog := &mockCatalogService{detail: &formatdto.Detail{ID: "unac-informe-cuant"}}
	r := newFormatRouter(catalog, &mockPreviewService{})

	w := serve(r, http.MethodGet, "/api/v1/formats/unac-informe-cuant/data", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"zeta":1,"alpha":2}`, w.Body.String())
}

func TestPreviewConditionalRequests(t *testing.T) {
	path := writeTempFile(t, "preview.pdf", "%PDF-1.4 preview")
	preview := &mockPreviewService{file: &service.PreviewFile{
		Path:        path,
		Filename:    "UNAC_INFORME.pdf",
		ContentType: service.ContentTypePDF,
		ETag:        `"etag-1"`,
		ModTime:     testModTime,
	}}
	r := newFormatRouter(&mockCatalogService{}, preview)

	w := serve(r, http.MethodGet, "/api/v1/formats/unac-informe-cuant/preview/pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"etag-1"`, w.Header().Get("ETag"))
	assert.Equal(t, "Fri, 01 Mar 2024 12:00:00 GMT", w.Header().Get("Last-Modified"))
	assert.Equal(t, `inline; filename="UNAC_INFORME.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, service.ContentTypePDF, w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 preview", w.Body.String())

	w = serve(r, http.MethodGet, "/api/v1/formats/unac-informe-cuant/preview/docx", map[string]string{"If-None-Match": `"etag-1"`})
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/formats/unac-informe-cuant/preview/pdf", map[string]string{"If-Modified-Since": "Fri, 01 Mar 2024 12:00:00 GMT"})
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/formats/unac-informe-cuant/preview/pdf", map[string]string{"If-Modified-Since": "Thu, 29 Feb 2024 12:00:00 GMT"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPreviewErrors(t *testing.T) {
	preview := &mockPreviewService{err: service.ErrFormatNotFound}
	r := newFormatRouter(&mockCatalogService{}, preview)

	w := serve(r, http.MethodGet, "/api/v1/formats/unac-nada/preview/pdf", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	preview.err = service.ErrPDFUnavailable
	w = serve(r, http.MethodGet, "/api/v1/formats/unac-informe-cuant/preview/pdf", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAsset(t *testing.T) {
	logo := writeTempFile(t, "LogoUNAC.png", "png-bytes")
	r := newFormatRouter(&mockCatalogService{assets: map[string]string{"unac/logo/main": logo}}, &mockPreviewService{})

	w := serve(r, http.MethodGet, "/api/v1/assets/unac/logo/main", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))
	assert.Equal(t, "png-bytes", w.Body.String())

	cases := map[string]int{
		"/api/v1/assets/escape":       http.StatusForbidden,
		"/api/v1/assets/unac/missing": http.StatusNotFound,
	}
	for target, want := range cases {
		assert.Equal(t, want, serve(r, http.MethodGet, target, nil).Code, target)
	}
}

func TestEtagMatches(t *testing.T) {
	assert.True(t, etagMatches(`"a", "b"`, `"b"`))
	assert.True(t, etagMatches(`*`, `"b"`))
	assert.False(t, etagMatches(``, `"b"`))
	assert.False(t, etagMatches(`"c"`, `"b"`))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(service.ErrInvalidAssetPath))
	assert.Equal(t, http.StatusBadRequest, statusFor(service.ErrInvalidMode))
	assert.Equal(t, http.StatusNotFound, statusFor(service.ErrFormatNotPublishable))
	assert.Equal(t, http.StatusForbidden, statusFor(service.ErrAssetForbidden))
	assert.Equal(t, http.StatusInternalServerError, statusFor(service.ErrRenderFailed))
}
