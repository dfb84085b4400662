package service

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gicatesis/backend/internal/model"
	"github.com/gicatesis/backend/internal/pkg/formatindex"
	"github.com/gicatesis/backend/internal/pkg/registry"
	"github.com/gicatesis/backend/internal/repository"
	"github.com/gicatesis/backend/internal/utils"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const thesisFormat = `{
	"_meta": {"entity": "format", "publish": true},
	"id": "informe-cuant",
	"titulo": "Informe Cuantitativo",
	"caratula": {"universidad": "UNAC", "titulo_tesis": "[TITULO]", "fecha": "2024"},
	"configuracion": {"ruta_logo": "logo.png", "generator": "gen.py", "margenes": {"izq": 3}},
	"cuerpo": [
		{"titulo": "Capítulo I", "nota": "borrar", "contenido": [{"texto": "Introducción"}]},
		{"titulo": "Capítulo II"}
	]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write error: %v", err)
	}
}

// newTestIndex 在临时目录中创建 unac 机构及一个可发布格式
func newTestIndex(t *testing.T) (*formatindex.Index, string) {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "formats", "unac")
	script := filepath.Join(root, "scripts", "gen_informe.py")
	writeFile(t, script, "# generator")
	writeFile(t, filepath.Join(dataDir, "informe", "cuant.json"), thesisFormat)
	writeFile(t, filepath.Join(dataDir, "informe", "config.json"), `{"_meta":{"entity":"config"},"caratula":{}}`)

	reg, err := registry.New([]registry.Organization{{
		Code:        "unac",
		DisplayName: "UNAC",
		DataDir:     dataDir,
		Generators:  map[string]string{"informe": script},
	}}, "unac")
	if err != nil {
		t.Fatalf("registry error: %v", err)
	}
	return formatindex.New(reg), root
}

// writeDocx 写出只含正文段落的最小 DOCX
func writeDocx(path string, paragraphs ...string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := zip.NewWriter(f)
	part, err := w.Create("word/document.xml")
	if err != nil {
		return err
	}
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	part.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `<w:sectPr/></w:body></w:document>`))
	return w.Close()
}

// fakeRenderer 记录输入 JSON 并输出固定段落的 DOCX
type fakeRenderer struct {
	mu     sync.Mutex
	calls  int
	inputs []string
	err    error
}

func (f *fakeRenderer) Render(ctx context.Context, script, inputJSON, outputDocx string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	data, err := os.ReadFile(inputJSON)
	if err != nil {
		return err
	}
	f.inputs = append(f.inputs, string(data))
	if f.err != nil {
		return f.err
	}
	return writeDocx(outputDocx, "Capítulo I", "NOTA: completar", "Introducción", "Capítulo II")
}

func (f *fakeRenderer) lastInput(t *testing.T) *utils.Object {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		t.Fatalf("renderer was not called")
	}
	v, err := utils.ParseJSON([]byte(f.inputs[len(f.inputs)-1]))
	if err != nil {
		t.Fatalf("input json invalid: %v", err)
	}
	obj, _ := utils.AsObject(v)
	return obj
}

type fakeConverter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeConverter) Convert(ctx context.Context, docxPath, pdfPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0644)
}

var errConvert = errors.New("soffice crashed")

func newTestRepo(t *testing.T) repository.GenerationRunRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	// 内存库每个连接独立，限制为单连接
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&model.GenerationRun{}, &model.Artifact{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return repository.NewGenerationRunRepository(db)
}
