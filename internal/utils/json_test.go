package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestParseJSONKeepsKeyOrder 验证对象键保持原始顺序
func TestParseJSONKeepsKeyOrder(t *testing.T) {
	v, err := ParseJSON([]byte(`{"zeta":1,"alpha":{"b":true,"a":null},"mid":[{"y":"1","x":"2"}]}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	obj, ok := AsObject(v)
	if !ok {
		t.Fatalf("expected object, got %T", v)
	}

	var keys []string
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	if strings.Join(keys, ",") != "zeta,alpha,mid" {
		t.Fatalf("unexpected key order: %v", keys)
	}

	n, _ := obj.Get("zeta")
	if _, ok := n.(json.Number); !ok {
		t.Fatalf("expected json.Number, got %T", n)
	}

	if got := ToJSON(v); got != `{"zeta":1,"alpha":{"b":true,"a":null},"mid":[{"y":"1","x":"2"}]}` {
		t.Fatalf("round trip changed document: %s", got)
	}
}

func TestParseJSONRejectsInvalidInput(t *testing.T) {
	cases := []string{`{"a":`, `{"a":1} trailing`, `[1,2`, ``}
	for _, c := range cases {
		if _, err := ParseJSON([]byte(c)); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestParseJSONStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"titulo":"Tesis"}`)...)
	v, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	obj, _ := AsObject(v)
	if FirstString(obj, "titulo") != "Tesis" {
		t.Fatalf("unexpected title")
	}
}

func TestDeepCopyIsIndependent(t *testing.T) {
	v, _ := ParseJSON([]byte(`{"caratula":{"autor":"A"},"lista":[1,2]}`))
	cp := DeepCopy(v)

	src, _ := AsObject(v)
	caratula, _ := ChildObject(src, "caratula")
	caratula.Set("autor", "B")

	dst, _ := AsObject(cp)
	copied, _ := ChildObject(dst, "caratula")
	if got, _ := copied.Get("autor"); got != "A" {
		t.Fatalf("copy was mutated: %v", got)
	}
}

func TestFirstString(t *testing.T) {
	v, _ := ParseJSON([]byte(`{"titulo":"  ","title":" Informe ","id":7}`))
	obj, _ := AsObject(v)
	if got := FirstString(obj, "titulo", "title"); got != "Informe" {
		t.Fatalf("expected Informe, got %q", got)
	}
	if got := FirstString(obj, "id"); got != "7" {
		t.Fatalf("expected numeric id as string, got %q", got)
	}
	if got := FirstString(nil, "id"); got != "" {
		t.Fatalf("expected empty string for nil object")
	}
}

func TestFromValueSortsMapKeys(t *testing.T) {
	v := FromValue(map[string]any{"b": 1, "a": []any{map[string]any{"d": 1, "c": 2}}})
	if got := ToJSON(v); got != `{"a":[{"c":2,"d":1}],"b":1}` {
		t.Fatalf("unexpected json: %s", got)
	}
}

func TestWriteJSONFileKeepsUnicode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	v, _ := ParseJSON([]byte(`{"titulo":"Capítulo I"}`))
	if err := WriteJSONFile(path, v); err != nil {
		t.Fatalf("write error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if !strings.Contains(string(data), "Capítulo I") {
		t.Fatalf("expected literal unicode in output: %s", data)
	}
	if !strings.Contains(string(data), "\n  \"titulo\"") {
		t.Fatalf("expected two-space indent: %s", data)
	}
}
