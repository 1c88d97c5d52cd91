// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blinkfox/fenix/internal/scan"
)

// Tag declares one tag a handler type is bound to.
type Tag struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix,omitempty"`
	Symbol string `yaml:"symbol,omitempty"`
}

// Tagged is a handler declaring its own tags.
type Tagged interface {
	Handler
	Tags() []Tag
}

// Location is a place Discover looks for handlers: a handler type, or a
// file tree holding handler descriptors.
//
// A descriptor is a YAML file binding tags to registered kinds:
//
//	handlers:
//	  - kind: condition
//	    tags:
//	      - {name: notEq, prefix: "", symbol: "!="}
//	      - {name: andNotEq, prefix: " AND ", symbol: "!="}
//	  - kind: upper
//
// A kind listed without tags binds the tags its handler declares through
// Tagged.
type Location interface {
	discover(r *Registry, logger *slog.Logger) (int, error)
}

// HandlerType returns a Location registering the tags declared by h.
func HandlerType(h Tagged) Location {
	return typeLocation{h: h}
}

// FS returns a Location scanning root in fsys, zip archives included, for
// descriptor files ending in .yaml or .yml.
func FS(fsys fs.FS, root string) Location {
	return fsLocation{fsys: fsys, root: root}
}

// Dir is FS over a directory of the local file system.
func Dir(path string) Location {
	return fsLocation{fsys: os.DirFS(path), root: ".", base: path + string(os.PathSeparator)}
}

// Discover registers the handlers found at locs. Problems with a single
// location or entry are logged and skipped; the returned error joins them.
// It returns the number of tags registered.
func (r *Registry) Discover(locs ...Location) (int, error) {
	return discover(r, slog.Default(), locs)
}

func discover(r *Registry, logger *slog.Logger, locs []Location) (int, error) {
	total := 0
	var errs []error
	for _, loc := range locs {
		n, err := loc.discover(r, logger)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

type typeLocation struct {
	h Tagged
}

func (l typeLocation) discover(r *Registry, logger *slog.Logger) (int, error) {
	if isNil(l.h) {
		return 0, errors.New("cannot discover a nil handler")
	}
	n, err := registerTags(r, reflect.TypeOf(l.h), l.h.Tags())
	if err != nil {
		logger.Warn("handler type skipped", "type", fmt.Sprintf("%T", l.h), "err", err)
	}
	return n, err
}

type fsLocation struct {
	fsys fs.FS
	root string
	base string
}

// descriptor is the YAML form of a handler descriptor file.
type descriptor struct {
	Handlers []struct {
		Kind string `yaml:"kind"`
		Tags []Tag  `yaml:"tags"`
	} `yaml:"handlers"`
}

func (l fsLocation) discover(r *Registry, logger *slog.Logger) (int, error) {
	w := &scan.Walker{Match: scan.Extensions(".yaml", ".yml"), Logger: logger}
	total := 0
	err := w.Walk(l.fsys, l.root, func(e scan.Entry) error {
		var desc descriptor
		dec := yaml.NewDecoder(bytes.NewReader(e.Data))
		dec.KnownFields(true)
		if err := dec.Decode(&desc); err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("empty descriptor")
			}
			return err
		}

		var errs []error
		for i, h := range desc.Handlers {
			t, ok := r.kind(h.Kind)
			if !ok {
				errs = append(errs, fmt.Errorf("%w: handler %d: kind %q", ErrNotFound, i, h.Kind))
				continue
			}
			tags := h.Tags
			if len(tags) == 0 {
				if sample, err := construct(t); err == nil {
					if tg, ok := sample.(Tagged); ok {
						tags = tg.Tags()
					}
				}
			}
			n, err := registerTags(r, t, tags)
			total += n
			if err != nil {
				errs = append(errs, fmt.Errorf("handler %d: %w", i, err))
			}
		}
		logger.Debug("handler descriptor read", "path", l.base+e.Path, "handlers", len(desc.Handlers))
		return errors.Join(errs...)
	})
	if err != nil && l.base != "" {
		err = fmt.Errorf("%s: %w", strings.TrimSuffix(l.base, string(os.PathSeparator)), err)
	}
	return total, err
}

// registerTags binds every tag to handler type t.
func registerTags(r *Registry, t reflect.Type, tags []Tag) (int, error) {
	if len(tags) == 0 {
		return 0, fmt.Errorf("%w: %s declares no tags", ErrInvalidNode, t)
	}
	n := 0
	var errs []error
	for _, tag := range tags {
		name := strings.TrimSpace(tag.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%w: %s has a tag without a name", ErrInvalidNode, t))
			continue
		}
		r.put(TagHandler{Name: name, Prefix: tag.Prefix, Symbol: tag.Symbol, Type: t})
		n++
	}
	return n, errors.Join(errs...)
}
