package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/gicatesis/backend/internal/pkg/formatindex"
	"github.com/gicatesis/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustObject(t *testing.T, raw string) *utils.Object {
	t.Helper()
	v, err := utils.ParseJSON([]byte(raw))
	require.NoError(t, err)
	obj, ok := utils.AsObject(v)
	require.True(t, ok)
	return obj
}

func testEntry() formatindex.Entry {
	return formatindex.Entry{
		ID:       "unac-informe-cual",
		Uni:      "unac",
		Category: "informe",
		Enfoque:  "cual",
		Path:     "/data/unac/informe/informe_cual.json",
		Title:    "Informe Cualitativo",
	}
}

func TestCanonicalJSON(t *testing.T) {
	obj := mustObject(t, `{"b":1,"a":{"y":"ñ","x":[true,null,"<>&"]}}`)
	out, err := CanonicalJSON(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"x":[true,null,"<>&"],"y":"ñ"},"b":1}`, string(out))

	out, err = CanonicalJSON(map[string]any{"k": "line\n\"q\"", "a": 1.5})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1.5,"k":"line\n\"q\""}`, string(out))
}

func TestCanonicalJSONIgnoresInsertionOrder(t *testing.T) {
	a, err := CanonicalJSON(mustObject(t, `{"x":1,"y":{"p":1,"q":2}}`))
	require.NoError(t, err)
	b, err := CanonicalJSON(mustObject(t, `{"y":{"q":2,"p":1},"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestFromDefinition(t *testing.T) {
	raw := mustObject(t, `{
		"_meta": {"title": "Título Meta", "documentType": "tesis"},
		"caratula": {"_interno": 1, "fecha_sustentacion": "", "numero_paginas": 10, "descripcion_breve": "", "acepta": true, "autor": "Nombre", "extra": {"x":1}},
		"campos": [{"name": "carrera", "type": "select", "options": ["A","B"]}, {"name": "sin_tipo"}, "no-object"],
		"configuracion": {"ruta_logo": "logo.png", "margenes": {"top": 2.5}, "fuente": "Arial", "plantilla": "base.docx"},
		"cuerpo": []
	}`)

	f := FromDefinition(testEntry(), raw)
	assert.Equal(t, "unac-informe-cual", f.ID)
	assert.Equal(t, "Título Meta", f.Title)
	assert.Equal(t, "unac", f.University)
	assert.Equal(t, "informe", f.Category)
	assert.Equal(t, "tesis", f.DocumentType)
	assert.True(t, f.Publishable)

	require.Len(t, f.Fields, 8)
	types := map[string]string{}
	for _, field := range f.Fields {
		types[field.Name] = field.Type
	}
	assert.Equal(t, FieldDate, types["fecha_sustentacion"])
	assert.Equal(t, FieldNumber, types["numero_paginas"])
	assert.Equal(t, FieldTextarea, types["descripcion_breve"])
	assert.Equal(t, FieldBoolean, types["acepta"])
	assert.Equal(t, FieldText, types["autor"])
	assert.Equal(t, FieldText, types["extra"])
	assert.Equal(t, FieldSelect, types["carrera"])
	assert.Equal(t, FieldText, types["sin_tipo"])

	assert.Equal(t, "Fecha Sustentacion", f.Fields[0].Label)
	assert.Nil(t, f.Fields[5].Default, "non-scalar defaults are dropped")
	assert.Equal(t, 7, f.Fields[6].Order)

	require.Len(t, f.Assets, 1)
	assert.Equal(t, "unac:logo:main", f.Assets[0].ID)
	assert.Equal(t, "logo", f.Assets[0].Kind)

	require.NotNil(t, f.Template)
	assert.Equal(t, "docx", f.Template.Kind)
	assert.Equal(t, filepath.Join("/data/unac/informe", "base.docx"), f.Template.Path)

	require.NotNil(t, f.Rules)
	assert.Equal(t, "Arial", f.Rules.Font)
	assert.Nil(t, f.Rules.LineSpacing)
}

func TestFromDefinitionWithoutConfig(t *testing.T) {
	f := FromDefinition(testEntry(), mustObject(t, `{"caratula":{}}`))
	assert.Equal(t, "Informe Cualitativo", f.Title)
	assert.Equal(t, "cual", f.DocumentType)
	assert.Nil(t, f.Template)
	assert.Nil(t, f.Rules)
	assert.Empty(t, f.Assets)
	assert.Empty(t, f.Fields)
}

func TestIsPublishable(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`{"_meta":{"publish":true}}`, true},
		{`{"_meta":{"publish":false},"caratula":{}}`, false},
		{`{"_meta":{"publish":0},"caratula":{}}`, false},
		{`{"_meta":{"entity":"config"},"caratula":{}}`, false},
		{`{"_meta":{"entity":"Format"},"cuerpo":[]}`, true},
		{`{"caratula":{}}`, true},
		{`{"configuracion":{}}`, false},
	}
	for i, c := range cases {
		if got := IsPublishable(mustObject(t, c.raw)); got != c.want {
			t.Fatalf("case %d (%s): expected %v, got %v", i, c.raw, c.want, got)
		}
	}
	assert.False(t, IsPublishable(nil))
}

func TestEntryHashStability(t *testing.T) {
	raw := `{"caratula":{"autor":"","titulo":""},"configuracion":{"fuente":"Arial"}}`
	f1 := FromDefinition(testEntry(), mustObject(t, raw))
	f2 := FromDefinition(testEntry(), mustObject(t, raw))
	assert.Equal(t, EntryHash(f1), EntryHash(f2))
	assert.Len(t, EntryHash(f1), 64)

	moved := f1
	moved.SourcePath = "/elsewhere.json"
	assert.Equal(t, EntryHash(f1), EntryHash(moved), "source path does not affect the hash")

	changed := FromDefinition(testEntry(), mustObject(t, `{"caratula":{"autor":"","titulo":""},"configuracion":{"fuente":"Times"}}`))
	assert.NotEqual(t, EntryHash(f1), EntryHash(changed))
}

func TestEntryHashIncludesTemplateBytes(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "base.docx")
	require.NoError(t, os.WriteFile(tpl, []byte("v1"), 0644))

	f := Format{ID: "unac-x", Title: "X", University: "unac", Template: &TemplateRef{Kind: "docx", Path: tpl}}
	h1 := EntryHash(f)
	require.NoError(t, os.WriteFile(tpl, []byte("v2"), 0644))
	h2 := EntryHash(f)
	assert.NotEqual(t, h1, h2)

	f.Template.Path = filepath.Join(dir, "missing.docx")
	withoutTemplate := f
	withoutTemplate.Template = nil
	assert.Equal(t, EntryHash(withoutTemplate), EntryHash(f), "unreadable templates are ignored")
}

func TestCatalogVersion(t *testing.T) {
	empty := sha256.Sum256([]byte("empty"))
	assert.Equal(t, hex.EncodeToString(empty[:]), CatalogVersion(nil))

	a := Format{ID: "unac-a", Title: "A", University: "unac"}
	b := Format{ID: "unac-b", Title: "B", University: "unac"}
	assert.Equal(t, CatalogVersion([]Format{a, b}), CatalogVersion([]Format{b, a}))

	b2 := b
	b2.Title = "B2"
	assert.NotEqual(t, CatalogVersion([]Format{a, b}), CatalogVersion([]Format{a, b2}))

	assert.Equal(t, "0123456789abcdef", ShortVersion("0123456789abcdef0123"))
}

func TestValidate(t *testing.T) {
	formats := []Format{
		{ID: "unac-ok", Title: "Ok", University: "unac", SourcePath: "a.json",
			Fields: []Field{{Name: "carrera", Type: FieldSelect, Options: []any{"A"}}},
			Assets: []Asset{{ID: "unac:logo:main", Kind: "logo"}}},
		{ID: "unac-bad", Title: "", University: "unac",
			Fields: []Field{
				{Name: "f1", Type: "color"},
				{Name: "f2", Type: FieldSelect},
				{Name: "f3", Type: FieldText, Options: []any{"x"}},
			},
			Assets: []Asset{{ID: "", Kind: ""}}},
		{ID: "unac-ok", Title: "Ok again", University: "unac", SourcePath: "b.json"},
	}

	report := Validate(formats)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Valid)
	assert.Equal(t, 1, report.Invalid)

	types := map[string]int{}
	for _, issue := range report.Errors {
		types[issue.Type]++
		assert.Equal(t, SeverityError, issue.Severity)
	}
	assert.Equal(t, 1, types[IssueMissingField])
	assert.Equal(t, 1, types[IssueInvalidType])
	assert.Equal(t, 1, types[IssueMissingOptions])
	assert.Equal(t, 1, types[IssueUnexpectedOptions])
	assert.Equal(t, 1, types[IssueMissingAssetID])
	assert.Equal(t, 1, types[IssueMissingAssetKind])
	assert.Equal(t, 1, types[IssueDuplicateID])
}

func TestValidateMissingID(t *testing.T) {
	issues := ValidateFormat(Format{Title: "T", University: "u"})
	require.Len(t, issues, 1)
	assert.Equal(t, IssueMissingID, issues[0].Type)
	assert.Equal(t, "unknown", issues[0].FormatID)
}
