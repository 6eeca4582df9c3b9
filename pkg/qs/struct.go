package qs

import (
	"reflect"
	"strings"
)

type field struct {
	name  string
	value reflect.Value
}

// structFields returns exported fields of the struct in the definition order.
//
// Field name is read from the "json" tag, the Go name is used as fallback.
// Field with tag `json:"-"` is ignored.
// Field with tag option "omitempty" is exported only if value is not empty.
func structFields(in reflect.Value) (out []field) {
	t := in.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		fieldValue := in.Field(i)

		// Process embedded type
		if f.Anonymous {
			embedded := fieldValue
			for embedded.Kind() == reflect.Ptr {
				if embedded.IsNil() {
					break
				}
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				out = append(out, structFields(embedded)...)
				continue
			}
		}

		// Skip unexported fields
		if !f.IsExported() {
			continue
		}

		// Get field name
		tag := strings.Split(f.Tag.Get("json"), ",")
		name := tag[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}

		// Skip empty field with "omitempty" option
		if fieldValue.IsZero() && hasOption(tag[1:], "omitempty") {
			continue
		}

		out = append(out, field{name: name, value: fieldValue})
	}
	return out
}

func hasOption(options []string, option string) bool {
	for _, o := range options {
		if o == option {
			return true
		}
	}
	return false
}
