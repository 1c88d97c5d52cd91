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
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/blinkfox/fenix/document"
	"github.com/blinkfox/fenix/internal/scan"
)

// Element names of a template document.
const (
	RootElement     = "fenixs"
	TemplateElement = "fenix"
)

// Repository holds parsed template documents by namespace. It is safe for
// concurrent use.
type Repository struct {
	mu sync.RWMutex
	// templates maps a namespace to its templates by id.
	templates map[string]map[string]*document.Node
	// sources maps a namespace to the file it was loaded from.
	sources map[string]string
	dirs    []string
	logger  *slog.Logger
}

// NewRepository returns an empty repository logging to logger, or to
// slog.Default() when logger is nil.
func NewRepository(logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		templates: map[string]map[string]*document.Node{},
		sources:   map[string]string{},
		logger:    logger,
	}
}

// Add registers the templates of a parsed document, replacing any earlier
// document of the same namespace.
func (r *Repository) Add(root *document.Node) error {
	_, err := r.add(root, "")
	return err
}

// Load parses a document and adds it. It returns the namespace of the
// document.
func (r *Repository) Load(rd io.Reader) (string, error) {
	root, err := document.Parse(rd)
	if err != nil {
		return "", err
	}
	return r.add(root, "")
}

func (r *Repository) add(root *document.Node, source string) (string, error) {
	if root == nil || root.Type != document.ElementNode || root.Name != RootElement {
		return "", fmt.Errorf("%w: document root must be <%s>", ErrInvalidNode, RootElement)
	}
	ns, _ := root.Attr("namespace")
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return "", fmt.Errorf("%w: <%s> needs a namespace", ErrInvalidNode, RootElement)
	}

	templates := map[string]*document.Node{}
	for _, n := range root.Elements(TemplateElement) {
		id, _ := n.Attr("id")
		id = strings.TrimSpace(id)
		if id == "" {
			return "", fmt.Errorf("%w: <%s> on line %d in namespace %q needs an id", ErrInvalidNode, TemplateElement, n.Line, ns)
		}
		if _, ok := templates[id]; ok {
			return "", fmt.Errorf("%w: duplicate id %q in namespace %q", ErrInvalidNode, id, ns)
		}
		templates[id] = n
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.sources[ns]; ok && source != "" && prev != "" && prev != source {
		r.logger.Warn("namespace redefined", "namespace", ns, "path", source, "previous", prev)
	}
	r.templates[ns] = templates
	r.sources[ns] = source
	return ns, nil
}

// LoadFS loads every XML document under root in fsys, including those in
// zip archives. Documents that cannot be read or parsed are logged and
// skipped; the returned error joins their problems. It returns the number
// of documents loaded.
func (r *Repository) LoadFS(fsys fs.FS, root string) (int, error) {
	return r.loadFS(fsys, root, "")
}

func (r *Repository) loadFS(fsys fs.FS, root, base string) (int, error) {
	w := &scan.Walker{Match: scan.Extensions(".xml"), Logger: r.logger}
	count := 0
	err := w.Walk(fsys, root, func(e scan.Entry) error {
		doc, err := document.Parse(bytes.NewReader(e.Data))
		if err != nil {
			return err
		}
		ns, err := r.add(doc, base+e.Path)
		if err != nil {
			return err
		}
		count++
		r.logger.Debug("document loaded", "path", base+e.Path, "namespace", ns)
		return nil
	})
	return count, err
}

// LoadDir loads the documents under dir and remembers dir for Reload.
func (r *Repository) LoadDir(dir string) (int, error) {
	r.mu.Lock()
	if !slices.Contains(r.dirs, dir) {
		r.dirs = append(r.dirs, dir)
	}
	r.mu.Unlock()
	return r.loadFS(os.DirFS(dir), ".", dir+string(os.PathSeparator))
}

// Reload loads again every directory passed to LoadDir.
func (r *Repository) Reload() (int, error) {
	r.mu.RLock()
	dirs := slices.Clone(r.dirs)
	r.mu.RUnlock()

	total := 0
	var errs []error
	for _, dir := range dirs {
		n, err := r.loadFS(os.DirFS(dir), ".", dir+string(os.PathSeparator))
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// loadFile loads a single document file.
func (r *Repository) loadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	root, err := document.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return r.add(root, path)
}

// Lookup returns the template id of namespace.
func (r *Repository) Lookup(namespace, id string) (*document.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	templates, ok := r.templates[namespace]
	if !ok {
		return nil, fmt.Errorf("%w: namespace %q", ErrNotFound, namespace)
	}
	n, ok := templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: template %q in namespace %q", ErrNotFound, id, namespace)
	}
	return n, nil
}

// Namespaces returns the loaded namespaces, sorted.
func (r *Repository) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.templates))
	for ns := range r.templates {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// IDs returns the template ids of namespace, sorted.
func (r *Repository) IDs(namespace string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.templates[namespace]))
	for id := range r.templates[namespace] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Source returns the file a namespace was loaded from, empty for documents
// added directly.
func (r *Repository) Source(namespace string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[namespace]
}
