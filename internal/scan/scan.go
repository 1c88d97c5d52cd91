// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package scan walks file trees for documents and handler descriptors. Zip
// archives found on the way are opened and walked as if they were
// directories. A bad entry never stops a walk: it is logged, skipped and
// reported in the error returned once the walk is over.
package scan

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
)

// ArchiveSeparator joins the path of an archive and the path of a file
// inside it, e.g. "lib/handlers.zip!/tags.yaml".
const ArchiveSeparator = "!/"

// maxArchiveDepth bounds archives nested in archives.
const maxArchiveDepth = 8

// Entry is a matching file found by Walk.
type Entry struct {
	Path string
	Data []byte
}

// Walker walks file trees. The zero value matches every file and logs to
// slog.Default().
type Walker struct {
	// Match selects files by base name. Archives are always opened.
	Match  func(name string) bool
	Logger *slog.Logger
}

// Extensions returns a Match function accepting names that end in one of
// exts, ignoring case.
func Extensions(exts ...string) func(string) bool {
	return func(name string) bool {
		name = strings.ToLower(name)
		for _, ext := range exts {
			if strings.HasSuffix(name, strings.ToLower(ext)) {
				return true
			}
		}
		return false
	}
}

// Walk calls fn for every matching file under root. Errors from reading
// entries, opening archives and from fn itself are collected and joined.
func (w *Walker) Walk(fsys fs.FS, root string, fn func(Entry) error) error {
	var errs []error
	w.walk(fsys, root, "", 0, fn, &errs)
	return errors.Join(errs...)
}

func (w *Walker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

func (w *Walker) match(name string) bool {
	return w.Match == nil || w.Match(name)
}

func (w *Walker) walk(fsys fs.FS, root, prefix string, depth int, fn func(Entry) error, errs *[]error) {
	fail := func(p string, err error) {
		w.logger().Warn("skipping scan entry", "path", p, "err", err)
		*errs = append(*errs, fmt.Errorf("%s: %w", p, err))
	}

	_ = fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		full := prefix + p
		if err != nil {
			fail(full, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		isArchive := strings.EqualFold(path.Ext(p), ".zip")
		if !isArchive && !w.match(d.Name()) {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			fail(full, err)
			return nil
		}

		if isArchive {
			if depth >= maxArchiveDepth {
				fail(full, fmt.Errorf("archives nested deeper than %d levels", maxArchiveDepth))
				return nil
			}
			zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				fail(full, err)
				return nil
			}
			w.logger().Debug("scanning archive", "path", full)
			w.walk(zr, ".", full+ArchiveSeparator, depth+1, fn, errs)
			return nil
		}

		if err := fn(Entry{Path: full, Data: data}); err != nil {
			fail(full, err)
		}
		return nil
	})
}
