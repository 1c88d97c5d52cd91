// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package reflect

import (
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Cache is responsible for generating, caching and retrieving the field
// layout of struct types used as build contexts.
type cache struct {
	mutex sync.RWMutex
	cache map[reflect.Type]*Info
}

// Reflect returns the Info of a given struct type, generating and caching it
// as required.
func (r *cache) Reflect(t reflect.Type) (*Info, error) {
	r.mutex.RLock()
	info, ok := r.cache[t]
	r.mutex.RUnlock()
	if ok {
		return info, nil
	}

	info, err := generate(t)
	if err != nil {
		return nil, err
	}

	r.mutex.Lock()
	r.cache[t] = info
	r.mutex.Unlock()
	return info, nil
}

// generate walks the exported fields of a struct type. Fields of embedded
// structs are promoted to the embedding struct, the same way Go promotes them
// for selectors: a shallower field hides a deeper one with the same key.
func generate(t reflect.Type) (*Info, error) {
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("cannot reflect %s: not a struct", t.Kind())
	}

	type embedded struct {
		t     reflect.Type
		index []int
	}

	info := &Info{Type: t}
	seen := make(map[string]bool)
	level := []embedded{{t: t}}
	for len(level) > 0 {
		var next []embedded
		for _, e := range level {
			for i := 0; i < e.t.NumField(); i++ {
				field := e.t.Field(i)
				fieldIndex := append(append([]int{}, e.index...), i)

				if ft, ok := promoted(field); ok {
					next = append(next, embedded{t: ft, index: fieldIndex})
					continue
				}
				if !field.IsExported() {
					continue
				}

				key, omitEmpty, err := parseTag(field.Tag.Get("fenix"))
				if err != nil {
					return nil, errors.Wrapf(err, "field %s.%s", e.t.Name(), field.Name)
				}
				if key == "-" {
					continue
				}
				if key == "" {
					key = lowerFirst(field.Name)
				}
				if seen[key] {
					continue
				}
				seen[key] = true

				info.Fields = append(info.Fields, Field{
					Key:       key,
					Name:      field.Name,
					Index:     fieldIndex,
					OmitEmpty: omitEmpty,
				})
			}
		}
		level = next
	}
	return info, nil
}

// promoted returns the struct type whose fields an untagged embedded field
// contributes to its parent.
func promoted(field reflect.StructField) (reflect.Type, bool) {
	if !field.Anonymous || field.Tag.Get("fenix") != "" {
		return nil, false
	}
	t := field.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		return nil, false
	}
	return t, true
}

// parseTag parses the input tag string and returns its name and whether it
// contains the "omitempty" option.
func parseTag(tag string) (string, bool, error) {
	options := strings.Split(tag, ",")

	var omitEmpty bool
	if len(options) > 1 {
		if strings.ToLower(options[1]) != "omitempty" {
			return "", false, errors.Errorf("unexpected tag value %q", options[1])
		}
		omitEmpty = true
	}

	return options[0], omitEmpty, nil
}

// lowerFirst turns an exported Go field name into the bean style property
// name used in expressions, e.g. "Name" -> "name", "ID" -> "id".
func lowerFirst(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == len(name) || !unicode.IsUpper(r) {
		return strings.ToLower(name[:size]) + name[size:]
	}
	// Keep acronyms readable: "ID" -> "id", "URLPath" -> "urlPath".
	runes := []rune(name)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	if n > 1 && n < len(runes) {
		n--
	}
	for i := 0; i < n; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
