// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package reflect

import (
	"database/sql/driver"
	"reflect"
	"time"

	"github.com/pkg/errors"
)

// maxDepth bounds the nesting followed when converting a context. It guards
// against pointer cycles.
const maxDepth = 32

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// Activation converts a caller supplied context into the variable bag the
// expression language resolves identifiers against. The context may be nil,
// a map with string keys or a struct (or a pointer to either). The context
// itself is never modified.
func Activation(ctx any) (map[string]any, error) {
	if ctx == nil {
		return map[string]any{}, nil
	}
	if m, ok := ctx.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, v := range m {
			cv, err := convert(reflect.ValueOf(v), 1)
			if err != nil {
				return nil, errors.Wrapf(err, "key %q", k)
			}
			out[k] = cv
		}
		return out, nil
	}

	v := reflect.ValueOf(ctx)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return map[string]any{}, nil
		}
		v = v.Elem()
	}
	switch {
	case v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String:
		return convertMap(v, 1)
	case v.Kind() == reflect.Struct && v.Type() != timeType:
		return convertStruct(v, 1)
	}
	return nil, errors.Errorf("context must be a struct or a map with string keys, got %s", v.Type())
}

func convert(v reflect.Value, depth int) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if depth > maxDepth {
		return nil, errors.Errorf("context nested deeper than %d levels", maxDepth)
	}
	if v.Type().Implements(valuerType) || v.Type() == timeType {
		return v.Interface(), nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return convert(v.Elem(), depth)
	case reflect.Struct:
		return convertStruct(v, depth+1)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return v.Interface(), nil
		}
		if v.IsNil() {
			return nil, nil
		}
		return convertMap(v, depth+1)
	case reflect.Slice, reflect.Array:
		if !composite(v.Type().Elem()) {
			// Sequences of scalars are handed over untouched so that
			// IN conditions bind the caller's own slice.
			return v.Interface(), nil
		}
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		out := make([]any, v.Len())
		for i := range out {
			ev, err := convert(v.Index(i), depth+1)
			if err != nil {
				return nil, errors.Wrapf(err, "index %d", i)
			}
			out[i] = ev
		}
		return out, nil
	}
	return v.Interface(), nil
}

func convertStruct(v reflect.Value, depth int) (map[string]any, error) {
	info, err := Cache().Reflect(v.Type())
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(info.Fields))
	for _, f := range info.Fields {
		fv, ok := fieldByIndex(v, f.Index)
		if !ok {
			continue
		}
		if f.OmitEmpty && fv.IsZero() {
			continue
		}
		cv, err := convert(fv, depth)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		out[f.Key] = cv
	}
	return out, nil
}

func convertMap(v reflect.Value, depth int) (map[string]any, error) {
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		cv, err := convert(iter.Value(), depth)
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", k)
		}
		out[k] = cv
	}
	return out, nil
}

// fieldByIndex is reflect.Value.FieldByIndex without the panic on nil
// embedded pointers.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

// composite reports whether values of type t need converting before the
// expression language can select into them.
func composite(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		return t != timeType && !t.Implements(valuerType)
	case reflect.Map, reflect.Interface, reflect.Slice, reflect.Array:
		return t.Kind() != reflect.Slice || t.Elem().Kind() != reflect.Uint8
	}
	return false
}
