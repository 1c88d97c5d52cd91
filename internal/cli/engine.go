// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blinkfox/fenix"
)

// NewEngine returns an engine with the built-in tags, the handlers found in
// the handler directories and the documents found in the document
// directories. Documents and descriptors that could not be loaded are
// reported in the error, next to a usable engine.
func NewEngine(cfg *Config, logger *slog.Logger) (*fenix.Engine, error) {
	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, err
	}
	registry := fenix.NewRegistry()
	fenix.RegisterBuiltins(registry)
	repo := fenix.NewRepository(logger)
	engine, err := fenix.New(fenix.Config{
		Registry:  registry,
		Documents: repo,
		Logger:    logger,
		CacheSize: cfg.Cache.Size,
		CacheTTL:  ttl,
		Debug:     cfg.Debug,
	})
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, dir := range cfg.Handlers.Dirs {
		n, err := engine.Discover(fenix.Dir(dir))
		if err != nil {
			errs = append(errs, err)
		}
		logger.Debug("handlers discovered", "dir", dir, "tags", n)
	}
	for _, dir := range cfg.Documents.Dirs {
		n, err := repo.LoadDir(dir)
		if err != nil {
			errs = append(errs, err)
		}
		logger.Debug("documents loaded", "dir", dir, "documents", n)
	}
	return engine, errors.Join(errs...)
}

// ReadContext reads a build context from a YAML file. An empty path gives
// an empty context.
func ReadContext(path string) (map[string]any, error) {
	ctx := map[string]any{}
	if path == "" {
		return ctx, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&ctx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cannot read context %s: %w", path, err)
	}
	return ctx, nil
}

// rendered is the printed form of a build.
type rendered struct {
	SQL        string         `yaml:"sql"`
	ResultType string         `yaml:"resultType,omitempty"`
	Params     map[string]any `yaml:"params"`
}

// WriteSQLInfo prints info as YAML, parameters sorted by name.
func WriteSQLInfo(w io.Writer, info *fenix.SQLInfo) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rendered{SQL: info.SQL(), ResultType: info.ResultType(), Params: info.Params()}); err != nil {
		return err
	}
	return enc.Close()
}
