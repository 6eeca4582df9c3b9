// Package qs serializes nested key-value structures to a URL query string.
//
// Nested values are flattened using the bracket notation:
//
//	{"foo": "hi there", "bar": {"blah": 123, "quux": [1, 2]}}
//	foo=hi%20there&bar%5Bblah%5D=123&bar%5Bquux%5D%5B0%5D=1&bar%5Bquux%5D%5B1%5D=2
//
// Entries are generated in the input order, so use *orderedmap.OrderedMap or []orderedmap.Pair
// if the order matters. Keys of a Go map are sorted, the map has no insertion order.
// Struct fields are exported in the definition order, names are read from the "json" tag.
package qs

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"
)

// Serialize converts the value to a query string, see the package documentation.
// The result is URI encoded by EncodeURI, an empty value results in an empty string.
func Serialize(value any) string {
	var entries []string
	walk("", reflect.ValueOf(value), &entries)
	return EncodeURI(strings.Join(entries, "&"))
}

// Entries returns the flattened "key=value" entries, without URI encoding.
func Entries(value any) []string {
	var entries []string
	walk("", reflect.ValueOf(value), &entries)
	return entries
}

func walk(path string, v reflect.Value, out *[]string) {
	// Dereference pointers and interfaces
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			break
		}
		if m, ok := v.Interface().(*orderedmap.OrderedMap); ok {
			walkOrderedMap(path, m, out)
			return
		}
		v = v.Elem()
	}

	// Nil leaf
	if !v.IsValid() || ((v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && v.IsNil()) {
		leaf(path, "", out)
		return
	}

	// Known types
	switch value := v.Interface().(type) {
	case orderedmap.OrderedMap:
		walkOrderedMap(path, &value, out)
		return
	case []orderedmap.Pair:
		for _, pair := range value {
			walk(child(path, pair.Key), reflect.ValueOf(pair.Value), out)
		}
		return
	case []byte:
		leaf(path, string(value), out)
		return
	case encoding.TextMarshaler:
		if text, err := value.MarshalText(); err == nil {
			leaf(path, string(text), out)
			return
		}
	}

	switch v.Kind() {
	case reflect.Map:
		keys := make([]string, 0, v.Len())
		values := make(map[string]reflect.Value, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := toString(iter.Key().Interface())
			keys = append(keys, key)
			values[key] = iter.Value()
		}
		sort.Strings(keys)
		for _, key := range keys {
			walk(child(path, key), values[key], out)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walk(child(path, strconv.Itoa(i)), v.Index(i), out)
		}
	case reflect.Struct:
		for _, f := range structFields(v) {
			walk(child(path, f.name), f.value, out)
		}
	default:
		leaf(path, toString(v.Interface()), out)
	}
}

func walkOrderedMap(path string, m *orderedmap.OrderedMap, out *[]string) {
	for _, key := range m.Keys() {
		value, _ := m.Get(key)
		walk(child(path, key), reflect.ValueOf(value), out)
	}
}

func leaf(path, value string, out *[]string) {
	// A scalar without a key cannot be represented
	if path == "" {
		return
	}
	*out = append(*out, path+"="+value)
}

func child(path, key string) string {
	if path == "" {
		return key
	}
	return path + "[" + key + "]"
}

func toString(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
