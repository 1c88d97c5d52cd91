// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/blinkfox/fenix/document"
	"github.com/blinkfox/fenix/internal/expr"
	"github.com/blinkfox/fenix/internal/reflect"
)

// Config holds the settings of an Engine. The zero value is usable.
type Config struct {
	// Registry resolves tags. Defaults to DefaultRegistry().
	Registry *Registry
	// Documents resolves fenix identifiers. Defaults to an empty
	// repository.
	Documents *Repository
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// CacheSize bounds the compiled expression and template caches.
	// Negative means unbounded, zero selects 1024.
	CacheSize int
	// CacheTTL is the age after which a cached entry is dropped. Negative
	// means never, zero selects 30 minutes. A positive TTL runs a cleanup
	// goroutine per cache for the life of the process.
	CacheTTL time.Duration
	// Debug reloads the directories of the repository before every build
	// by identifier so that edited documents are picked up.
	Debug bool
}

// Engine builds SQL from documents and from the fluent Builder. An Engine
// is safe for concurrent use; each build works on its own BuildSource.
// Engines are meant to be long-lived and shared: the expiring caches of an
// Engine are never released. Short-lived engines should set a negative
// CacheTTL.
type Engine struct {
	registry *Registry
	docs     *Repository
	eval     *expr.Evaluator
	logger   *slog.Logger
	debug    bool
}

// New returns an Engine configured by the first cfg, if any. Create one
// Engine per configuration and share it.
func New(cfg ...Config) (*Engine, error) {
	var c Config
	if len(cfg) > 0 {
		c = cfg[0]
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Registry == nil {
		c.Registry = DefaultRegistry()
	}
	if c.Documents == nil {
		c.Documents = NewRepository(c.Logger)
	}
	eval, err := expr.NewEvaluator(expr.Config{
		CacheSize: c.CacheSize,
		CacheTTL:  c.CacheTTL,
		Logger:    c.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Engine{
		registry: c.Registry,
		docs:     c.Documents,
		eval:     eval,
		logger:   c.Logger,
		debug:    c.Debug,
	}, nil
}

// MustNew is the same as New except that it panics on error.
func MustNew(cfg ...Config) *Engine {
	e, err := New(cfg...)
	if err != nil {
		panic(err)
	}
	return e
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
)

// Default returns the process wide engine built on DefaultRegistry.
func Default() *Engine {
	defaultEngineOnce.Do(func() {
		defaultEngine = MustNew()
	})
	return defaultEngine
}

// Registry returns the registry of e.
func (e *Engine) Registry() *Registry { return e.registry }

// Documents returns the document repository of e.
func (e *Engine) Documents() *Repository { return e.docs }

// Purge empties the compiled expression and template caches.
func (e *Engine) Purge() { e.eval.Purge() }

// Discover registers the handlers found at locs with the registry of e.
func (e *Engine) Discover(locs ...Location) (int, error) {
	return discover(e.registry, e.logger, locs)
}

// Build renders the template addressed by a "<namespace>.<id>"
// identifier.
func (e *Engine) Build(fenixID string, ctx any) (*SQLInfo, error) {
	namespace, id, err := ParseID(fenixID)
	if err != nil {
		return nil, err
	}
	return e.BuildFrom(namespace, id, ctx)
}

// BuildFrom renders the template id of namespace.
func (e *Engine) BuildFrom(namespace, id string, ctx any) (*SQLInfo, error) {
	if e.debug {
		if _, err := e.docs.Reload(); err != nil {
			e.logger.Warn("document reload failed", "err", err)
		}
	}
	node, err := e.docs.Lookup(namespace, id)
	if err != nil {
		return nil, err
	}
	return e.BuildFromNode(namespace, node, ctx)
}

// BuildFromNode renders a template node. Text children are rendered and
// appended, element children are dispatched by tag name. The result then
// has its whitespace collapsed and its "#{expr}" markers turned into named
// parameters.
func (e *Engine) BuildFromNode(namespace string, node *document.Node, ctx any) (*SQLInfo, error) {
	return e.buildNode(namespace, node, ctx, 0)
}

func (e *Engine) buildNode(namespace string, node *document.Node, ctx any, imports int) (*SQLInfo, error) {
	if node == nil || node.Type != document.ElementNode {
		return nil, fmt.Errorf("%w: cannot build from a nil or text node", ErrInvalidNode)
	}
	src, err := e.NewSource(namespace, node, ctx)
	if err != nil {
		return nil, err
	}
	src.imports = imports
	if rt, ok := node.Attr("resultType"); ok {
		src.info.SetResultType(strings.TrimSpace(rt))
	}

	if err := src.WalkChildren(node); err != nil {
		return nil, err
	}
	if err := e.finish(src, node); err != nil {
		return nil, err
	}
	return src.info, nil
}

// BuildFromTag dispatches tag against src.
func (e *Engine) BuildFromTag(src *BuildSource, tag string) error {
	return e.registry.Dispatch(src, tag)
}

// WalkChildren renders the children of n into the source.
func (s *BuildSource) WalkChildren(n *document.Node) error {
	if n == nil {
		return nil
	}
	return s.engine.walk(s, n.Children)
}

func (e *Engine) walk(src *BuildSource, nodes []*document.Node) error {
	parent := src.node
	defer func() { src.node = parent }()

	for _, n := range nodes {
		switch n.Type {
		case document.TextNode:
			text, err := src.Render(n.Text)
			if err != nil {
				return err
			}
			src.info.Append(text)
		case document.ElementNode:
			src.node = n
			if err := e.BuildFromTag(src, n.Name); err != nil {
				if n.Line > 0 {
					return fmt.Errorf("line %d: %w", n.Line, err)
				}
				return err
			}
		}
	}
	return nil
}

// finish renders what is left of the templates, collapses whitespace, binds
// the "#{expr}" markers and removes the snippets named by removeIfExist.
func (e *Engine) finish(src *BuildSource, node *document.Node) error {
	sql, err := src.Render(src.info.SQL())
	if err != nil {
		return err
	}
	sql, err = e.bind(src, normalize(sql))
	if err != nil {
		return err
	}
	if remove, ok := node.Attr("removeIfExist"); ok {
		for _, snippet := range strings.Split(remove, "|") {
			if snippet = normalize(snippet); snippet != "" {
				sql = strings.Replace(sql, snippet, "", 1)
			}
		}
		sql = normalize(sql)
	}
	src.info.setSQL(sql)
	return nil
}

// bind replaces each "#{expr}" marker with a ":name" placeholder and binds
// the value of expr to name. A name used twice keeps the last value.
func (e *Engine) bind(src *BuildSource, sql string) (string, error) {
	parts, err := e.eval.Bindings(sql)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(sql))
	for _, part := range parts {
		switch part := part.(type) {
		case *expr.Literal:
			b.WriteString(part.Text)
		case *expr.Embedded:
			v, err := src.EvalValue(part.Source)
			if err != nil {
				return "", err
			}
			name := expr.ParamName(part.Source)
			if name == "" {
				return "", &ExpressionError{Source: part.Source, Err: errors.New("cannot derive a parameter name")}
			}
			src.info.SetParam(name, v)
			b.WriteString(":" + name)
		}
	}
	return b.String(), nil
}

// normalize collapses every run of blanks into a single space.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// activation turns a build context into expression variables.
func activation(ctx any) (map[string]any, error) {
	act, err := reflect.Activation(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return act, nil
}
