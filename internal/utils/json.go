package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"k8s.io/klog/v2"
)

// Object 保持键顺序的 JSON 对象
type Object = orderedmap.OrderedMap[string, any]

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewObject 创建空的有序对象
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// ParseJSON 解析 JSON 为有序树
// 对象解析为 *Object，数组为 []any，数字保留为 json.Number
func ParseJSON(data []byte) (any, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid character after top-level value")
	}
	return v, nil
}

// ParseJSONFile 读取并解析 JSON 文件
func ParseJSONFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseJSON(data)
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := NewObject()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("invalid object key: %v", keyTok)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := make([]any, 0)
		for dec.More() {
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected delimiter: %v", delim)
}

// FromValue 将普通 Go 值（请求体中的 map/slice）转换为有序树
// map 的键按字典序排列
func FromValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		obj := NewObject()
		for _, key := range SortedKeys(val) {
			obj.Set(key, FromValue(val[key]))
		}
		return obj
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = FromValue(item)
		}
		return out
	default:
		return v
	}
}

// DeepCopy 深拷贝 JSON 树
func DeepCopy(v any) any {
	switch val := v.(type) {
	case *Object:
		out := NewObject()
		for pair := val.Oldest(); pair != nil; pair = pair.Next() {
			out.Set(pair.Key, DeepCopy(pair.Value))
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = DeepCopy(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = DeepCopy(item)
		}
		return out
	default:
		return v
	}
}

// AsObject 类型断言为有序对象
func AsObject(v any) (*Object, bool) {
	obj, ok := v.(*Object)
	return obj, ok && obj != nil
}

// ChildObject 获取子对象
func ChildObject(obj *Object, key string) (*Object, bool) {
	if obj == nil {
		return nil, false
	}
	v, ok := obj.Get(key)
	if !ok {
		return nil, false
	}
	return AsObject(v)
}

// FirstString 按顺序返回第一个非空字符串字段（已去除首尾空白）
func FirstString(obj *Object, keys ...string) string {
	if obj == nil {
		return ""
	}
	for _, key := range keys {
		v, ok := obj.Get(key)
		if !ok {
			continue
		}
		if s := Stringify(v); strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Stringify 标量转字符串，对象/数组/nil 返回空串
func Stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64, float32, int, int64, int32, uint, uint64:
		return fmt.Sprint(val)
	default:
		return ""
	}
}

// ToJSON 序列化为紧凑 JSON 字符串
func ToJSON(v any) string {
	jsonData, err := json.Marshal(v)
	if err != nil {
		klog.Errorf("JSON序列化失败: %v", err)
		return ""
	}
	return string(jsonData)
}

// WriteJSONFile 以两空格缩进写入 JSON 文件，保留非 ASCII 字符
func WriteJSONFile(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal json: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to indent json: %w", err)
	}
	buf.WriteByte('\n')
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// SortedKeys 返回按字典序排列的键
func SortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
