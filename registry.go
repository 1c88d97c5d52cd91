// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Handler builds the fragment of one tag. The source carries the prefix
// and symbol registered with the tag, and during a document walk the node
// being handled.
type Handler interface {
	Build(src *BuildSource) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(src *BuildSource) error

func (f HandlerFunc) Build(src *BuildSource) error {
	return f(src)
}

// Factory creates the handler for a single dispatch.
type Factory func() Handler

// TagHandler is the registration of one tag.
type TagHandler struct {
	Name   string
	Prefix string
	Symbol string
	// Factory creates the handler. When it is nil a zero value of Type is
	// used instead.
	Factory Factory
	Type    reflect.Type
}

// TypeName describes the handler behind the tag.
func (t TagHandler) TypeName() string {
	switch {
	case t.Type != nil:
		return t.Type.String()
	case t.Factory != nil:
		return "factory"
	}
	return "<none>"
}

func (t TagHandler) instantiate() (h Handler, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, &InstantiationError{Type: t.TypeName(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	switch {
	case t.Factory != nil:
		h = t.Factory()
	case t.Type != nil:
		h, err = construct(t.Type)
		if err != nil {
			return nil, &InstantiationError{Type: t.TypeName(), Err: err}
		}
	}
	if isNil(h) {
		return nil, &InstantiationError{Type: t.TypeName(), Err: errors.New("no handler created")}
	}
	return h, nil
}

// construct returns a zero value of t, allocating one when t is a pointer
// type.
func construct(t reflect.Type) (Handler, error) {
	var v reflect.Value
	if t.Kind() == reflect.Pointer {
		v = reflect.New(t.Elem())
	} else {
		v = reflect.New(t).Elem()
	}
	h, ok := v.Interface().(Handler)
	if !ok {
		return nil, fmt.Errorf("%s does not implement Handler", t)
	}
	return h, nil
}

// Registry maps tag names to their handlers. It is safe for concurrent use,
// tags may be registered while builds are running.
type Registry struct {
	mu    sync.RWMutex
	tags  map[string]TagHandler
	kinds map[string]reflect.Type
}

// NewRegistry returns an empty registry. Use RegisterBuiltins to add the
// built-in tags.
func NewRegistry() *Registry {
	return &Registry{
		tags:  map[string]TagHandler{},
		kinds: map[string]reflect.Type{},
	}
}

// Register binds a tag name to a factory, replacing any earlier binding of
// the same name.
func (r *Registry) Register(name, prefix, symbol string, factory Factory) {
	r.put(TagHandler{Name: name, Prefix: prefix, Symbol: symbol, Factory: factory})
}

// RegisterType binds a tag name to the type of sample. Each dispatch works
// on a fresh zero value of that type.
func (r *Registry) RegisterType(name, prefix, symbol string, sample Handler) error {
	if isNil(sample) {
		return fmt.Errorf("cannot register tag %q: nil handler", name)
	}
	r.put(TagHandler{Name: name, Prefix: prefix, Symbol: symbol, Type: reflect.TypeOf(sample)})
	return nil
}

func (r *Registry) put(th TagHandler) {
	r.mu.Lock()
	r.tags[th.Name] = th
	r.mu.Unlock()
}

// RegisterKind names the type of sample so that handler descriptors can
// refer to it.
func (r *Registry) RegisterKind(kind string, sample Handler) error {
	if isNil(sample) {
		return fmt.Errorf("cannot register kind %q: nil handler", kind)
	}
	r.mu.Lock()
	r.kinds[kind] = reflect.TypeOf(sample)
	r.mu.Unlock()
	return nil
}

func (r *Registry) kind(kind string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.kinds[kind]
	return t, ok
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	kinds := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	r.mu.RUnlock()
	sort.Strings(kinds)
	return kinds
}

// Lookup returns the registration of a tag.
func (r *Registry) Lookup(name string) (TagHandler, bool) {
	r.mu.RLock()
	th, ok := r.tags[name]
	r.mu.RUnlock()
	return th, ok
}

// Tags returns every registration sorted by tag name.
func (r *Registry) Tags() []TagHandler {
	r.mu.RLock()
	tags := make([]TagHandler, 0, len(r.tags))
	for _, th := range r.tags {
		tags = append(tags, th)
	}
	r.mu.RUnlock()
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags
}

// Dispatch runs the handler of tag against src. The prefix and symbol of
// the tag are set on src for the duration of the call.
func (r *Registry) Dispatch(src *BuildSource, tag string) error {
	th, ok := r.Lookup(tag)
	if !ok {
		return fmt.Errorf("%w: no handler for tag %q", ErrNotFound, tag)
	}
	h, err := th.instantiate()
	if err != nil {
		return fmt.Errorf("tag %q: %w", tag, err)
	}

	src.SetPrefix(th.Prefix)
	src.SetSymbol(th.Symbol)
	defer src.Reset()
	return h.Build(src)
}
