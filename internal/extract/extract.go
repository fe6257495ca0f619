// Package extract достаёт логические поля из JSON, в котором одно и то же значение
// может лежать под разными ключами. Побеждает первый найденный ключ.
package extract

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Field: логическое поле и упорядоченный список ключей-кандидатов.
// Ключ может быть путём через точку: "data.tracking".
type Field struct {
	Name string
	Keys []string
}

func NewField(name string, keys ...string) Field {
	return Field{Name: name, Keys: keys}
}

// Decode разбирает произвольный JSON-объект.
func Decode(b []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Lookup возвращает первое непустое значение среди ключей, любого типа.
func (f Field) Lookup(raw map[string]any) (any, bool) {
	var out any
	found := f.first(raw, func(v any) bool {
		out = v
		return true
	})
	return out, found
}

// first перебирает непустые значения кандидатов, пока accept не примет одно из них.
// Кандидат неподходящего типа не останавливает поиск.
func (f Field) first(raw map[string]any, accept func(v any) bool) bool {
	for _, k := range f.Keys {
		v, ok := path(raw, k)
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		if accept(v) {
			return true
		}
	}
	return false
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

func (f Field) String(raw map[string]any) string {
	var out string
	f.first(raw, func(v any) bool {
		s, ok := scalarString(v)
		out = s
		return ok
	})
	return out
}

func (f Field) Float(raw map[string]any) (float64, bool) {
	var out float64
	found := f.first(raw, func(v any) bool {
		switch t := v.(type) {
		case float64:
			out = t
			return true
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(t, ",", ".")), 64)
			if err != nil {
				return false
			}
			out = n
			return true
		default:
			return false
		}
	})
	return out, found
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (f Field) Time(raw map[string]any) (time.Time, bool) {
	var out time.Time
	found := f.first(raw, func(v any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		for _, l := range timeLayouts {
			if t, err := time.Parse(l, strings.TrimSpace(s)); err == nil {
				out = t.UTC()
				return true
			}
		}
		return false
	})
	return out, found
}

// Object возвращает вложенный объект под первым подходящим ключом.
func (f Field) Object(raw map[string]any) (map[string]any, bool) {
	for _, k := range f.Keys {
		v, ok := path(raw, k)
		if !ok {
			continue
		}
		if m, isMap := v.(map[string]any); isMap {
			return m, true
		}
	}
	return nil, false
}

// List возвращает вложенный массив объектов под первым подходящим ключом.
func (f Field) List(raw map[string]any) []map[string]any {
	for _, k := range f.Keys {
		v, ok := path(raw, k)
		if !ok {
			continue
		}
		arr, isArr := v.([]any)
		if !isArr {
			continue
		}
		out := make([]map[string]any, 0, len(arr))
		for _, it := range arr {
			if m, isMap := it.(map[string]any); isMap {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func path(raw map[string]any, key string) (any, bool) {
	var cur any = raw
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
