// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 30 * time.Minute
)

// Config holds the Evaluator settings. Zero values select the defaults.
type Config struct {
	// CacheSize bounds the number of compiled programs and, separately, of
	// parsed templates kept in memory. Negative means unbounded.
	CacheSize int
	// CacheTTL is the age after which a cache entry is dropped. Negative
	// means entries never expire.
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// templateKey distinguishes the two template syntaxes sharing one cache.
type templateKey struct {
	marker rune
	source string
}

// Evaluator evaluates expressions and renders templates. A single Evaluator
// is safe for concurrent use.
type Evaluator struct {
	env       *cel.Env
	programs  *expirable.LRU[string, cel.Program]
	templates *expirable.LRU[templateKey, []Part]
	logger    *slog.Logger
}

// NewEvaluator returns an Evaluator with empty caches.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("cannot create expression environment: %w", err)
	}

	size := cfg.CacheSize
	switch {
	case size == 0:
		size = DefaultCacheSize
	case size < 0:
		size = 0
	}
	ttl := cfg.CacheTTL
	switch {
	case ttl == 0:
		ttl = DefaultCacheTTL
	case ttl < 0:
		ttl = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Evaluator{
		env:       env,
		programs:  expirable.NewLRU[string, cel.Program](size, nil, ttl),
		templates: expirable.NewLRU[templateKey, []Part](size, nil, ttl),
		logger:    logger,
	}, nil
}

// program returns the compiled program for src, compiling and caching it as
// required.
func (e *Evaluator) program(src string) (cel.Program, error) {
	if prg, ok := e.programs.Get(src); ok {
		return prg, nil
	}

	ast, iss := e.env.Parse(src)
	if iss != nil && iss.Err() != nil {
		return nil, newError(src, iss.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, newError(src, err)
	}
	e.programs.Add(src, prg)
	return prg, nil
}

// EvalValue evaluates src against the activation and returns the result as
// a Go value.
func (e *Evaluator) EvalValue(src string, act map[string]any) (any, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, newError(src, errors.New("empty expression"))
	}
	prg, err := e.program(src)
	if err != nil {
		return nil, err
	}
	if act == nil {
		act = map[string]any{}
	}
	out, _, err := prg.Eval(act)
	if err != nil {
		return nil, newError(src, err)
	}
	return native(out), nil
}

// EvalBool evaluates src, which must produce a boolean.
func (e *Evaluator) EvalBool(src string, act map[string]any) (bool, error) {
	v, err := e.EvalValue(src, act)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, newError(src, fmt.Errorf("expected bool, got %T", v))
	}
	return b, nil
}

// IsTrue is the best-effort form of EvalBool used for match expressions:
// any failure is logged and reported as false.
func (e *Evaluator) IsTrue(src string, act map[string]any) bool {
	b, err := e.EvalBool(src, act)
	if err != nil {
		e.logger.Warn("match expression failed, fragment skipped", "expr", src, "err", err)
		return false
	}
	return b
}

// Render substitutes every "@{expr}" in tmpl with the text of its value.
func (e *Evaluator) Render(tmpl string, act map[string]any) (string, error) {
	if !strings.Contains(tmpl, "@{") {
		return tmpl, nil
	}
	parts, err := e.parse(InterpolationMarker, tmpl)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(tmpl))
	for _, part := range parts {
		switch part := part.(type) {
		case *Literal:
			b.WriteString(part.Text)
		case *Embedded:
			v, err := e.EvalValue(part.Source, act)
			if err != nil {
				return "", err
			}
			b.WriteString(text(v))
		}
	}
	return b.String(), nil
}

// Bindings splits text around its "#{expr}" markers.
func (e *Evaluator) Bindings(text string) ([]Part, error) {
	if !strings.Contains(text, "#{") {
		return []Part{&Literal{Text: text}}, nil
	}
	return e.parse(BindMarker, text)
}

func (e *Evaluator) parse(marker rune, src string) ([]Part, error) {
	key := templateKey{marker: marker, source: src}
	if parts, ok := e.templates.Get(key); ok {
		return parts, nil
	}
	parts, err := NewParser(marker).Parse(src)
	if err != nil {
		return nil, err
	}
	e.templates.Add(key, parts)
	return parts, nil
}

// Purge drops every cached program and template.
func (e *Evaluator) Purge() {
	e.programs.Purge()
	e.templates.Purge()
}

// CacheLen returns the number of cached programs and templates.
func (e *Evaluator) CacheLen() (programs, templates int) {
	return e.programs.Len(), e.templates.Len()
}
