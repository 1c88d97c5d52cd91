// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"fmt"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// native converts a CEL value into a plain Go value. Integers come back as
// int64 and unsigned integers as uint64 whatever their type in the context,
// floats as float64. Lists and maps built inside an expression become []any
// and map[string]any.
func native(v ref.Val) any {
	if v == nil {
		return nil
	}
	if _, ok := v.(types.Null); ok {
		return nil
	}
	switch raw := v.Value().(type) {
	case []ref.Val:
		out := make([]any, len(raw))
		for i, e := range raw {
			out[i] = native(e)
		}
		return out
	case map[ref.Val]ref.Val:
		out := make(map[string]any, len(raw))
		for k, e := range raw {
			out[fmt.Sprint(native(k))] = native(e)
		}
		return out
	default:
		return raw
	}
}

// text renders a value for interpolation into template text.
func text(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
