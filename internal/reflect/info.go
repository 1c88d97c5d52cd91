// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package reflect

import (
	"reflect"
)

// Info represents reflected information about a struct type used as a build
// context.
type Info struct {
	Type reflect.Type

	// Fields lists the properties exposed to expressions, in declaration
	// order.
	Fields []Field
}

// Field represents a single property of a struct type.
type Field struct {
	// Key is the name the property is known by in expressions. It is the
	// "fenix" tag if present, otherwise the field name with its leading
	// capitals lowered.
	Key string

	// Name is the name of the struct field.
	Name string

	// Index is the index sequence for reflect.Value.FieldByIndex.
	Index []int

	// OmitEmpty is true when "omitempty" is a property of the field's
	// "fenix" tag. Zero values of such fields are left out of the
	// activation so that has() reports them as absent.
	OmitEmpty bool
}
