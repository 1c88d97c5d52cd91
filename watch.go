// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads a document whenever an XML file under dirs is created or
// written, until ctx is done.
func (r *Repository) Watch(ctx context.Context, dirs ...string) error {
	return r.WatchFunc(ctx, nil, dirs...)
}

// WatchFunc is Watch calling onReload with the namespace of every document
// reloaded.
func (r *Repository) WatchFunc(ctx context.Context, onReload func(namespace string), dirs ...string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, dir := range dirs {
		if err := addTree(w, dir); err != nil {
			return err
		}
	}
	r.logger.Info("watching documents", "dirs", dirs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				if err := addTree(w, ev.Name); err != nil {
					r.logger.Warn("cannot watch directory", "path", ev.Name, "err", err)
				}
				continue
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".xml") {
				continue
			}
			ns, err := r.loadFile(ev.Name)
			if err != nil {
				r.logger.Warn("document reload failed", "path", ev.Name, "err", err)
				continue
			}
			r.logger.Info("document reloaded", "path", ev.Name, "namespace", ns)
			if onReload != nil {
				onReload(ns)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("document watcher error", "err", err)
		}
	}
}

// addTree watches dir and every directory below it.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
