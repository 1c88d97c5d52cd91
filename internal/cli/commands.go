// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/blinkfox/fenix"
)

// Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.Main.Version != "" && info.Main.Version != "(devel)" {
				Version = info.Main.Version
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					if len(setting.Value) >= 7 {
						Commit = setting.Value[:7]
					} else {
						Commit = setting.Value
					}
				case "vcs.time":
					Date = setting.Value
				}
			}
		}
	}
}

// app is the state shared by the commands of one invocation.
type app struct {
	// Set during PersistentPreRunE.
	cfg        *Config
	configPath string
	logger     *slog.Logger

	// Persistent flags.
	cfgFile   string
	documents []string
	handlers  []string
	debug     bool
	logLevel  string
}

// Command group IDs
const (
	groupTemplate = "template"
	groupUtility  = "utility"
)

// NewRootCommand returns the fenix command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "fenix",
		Short: "Render SQL from fenix template documents",
		Long: `fenix - dynamic SQL templates

Fenix renders parameterized SQL from XML template documents, evaluating the
match and value expressions of each tag against a YAML context.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: auto-discover fenix.yaml)")
	root.PersistentFlags().StringSliceVarP(&a.documents, "documents", "d", nil, "document directories (overrides documents.dirs)")
	root.PersistentFlags().StringSliceVar(&a.handlers, "handlers", nil, "handler descriptor directories (overrides handlers.dirs)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "reload documents before every build")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddGroup(
		&cobra.Group{ID: groupTemplate, Title: "Templates:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)
	for _, cmd := range []*cobra.Command{a.renderCommand(), a.watchCommand(), a.validateCommand(), a.tagsCommand()} {
		cmd.GroupID = groupTemplate
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{a.configCommand(), versionCommand()} {
		cmd.GroupID = groupUtility
		root.AddCommand(cmd)
	}
	return root
}

// load reads the configuration, applies the flags over it and sets up the
// logger.
func (a *app) load(cmd *cobra.Command) error {
	cfg, configPath, err := LoadConfig(a.cfgFile)
	if err != nil {
		return ConfigError("loading configuration", err)
	}
	flags := cmd.Flags()
	if flags.Changed("documents") {
		cfg.Documents.Dirs = a.documents
	}
	if flags.Changed("handlers") {
		cfg.Handlers.Dirs = a.handlers
	}
	if flags.Changed("debug") {
		cfg.Debug = a.debug
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}

	logger, err := NewLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return ConfigError("setting up logging", err)
	}
	a.cfg, a.configPath, a.logger = cfg, configPath, logger
	return nil
}

// engine builds the engine, logging the documents that could not be
// loaded.
func (a *app) engine() (*fenix.Engine, error) {
	engine, err := NewEngine(a.cfg, a.logger)
	if engine == nil {
		return nil, ConfigError("creating engine", err)
	}
	if err != nil {
		a.logger.Warn("some documents or handlers could not be loaded", "err", err)
	}
	return engine, nil
}

func (a *app) renderCommand() *cobra.Command {
	var contextFile string
	cmd := &cobra.Command{
		Use:   "render <namespace.id>",
		Short: "Render a template",
		Long:  `Render a template against a YAML context and print the SQL, its result type and its parameters.`,
		Example: `  # Render a template without context
  fenix render user.queryAll

  # Render a template with a context file
  fenix render user.search --context search.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := ReadContext(contextFile)
			if err != nil {
				return ConfigError("reading context", err)
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}
			info, err := engine.Build(args[0], ctx)
			if err != nil {
				return BuildError(fmt.Sprintf("rendering %s", args[0]), err)
			}
			return WriteSQLInfo(cmd.OutOrStdout(), info)
		},
	}
	cmd.Flags().StringVarP(&contextFile, "context", "c", "", "YAML file holding the build context")
	return cmd
}

func (a *app) watchCommand() *cobra.Command {
	var contextFile string
	cmd := &cobra.Command{
		Use:   "watch <namespace.id>",
		Short: "Render a template again whenever its document changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, _, err := fenix.ParseID(args[0])
			if err != nil {
				return BuildError("watching", err)
			}
			ctx, err := ReadContext(contextFile)
			if err != nil {
				return ConfigError("reading context", err)
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			render := func() {
				info, err := engine.Build(args[0], ctx)
				if err != nil {
					a.logger.Error("render failed", "id", args[0], "err", err)
					return
				}
				if err := WriteSQLInfo(out, info); err != nil {
					a.logger.Error("cannot print result", "err", err)
				}
				fmt.Fprintln(out, "---")
			}
			render()
			return engine.Documents().WatchFunc(cmd.Context(), func(ns string) {
				if ns == namespace {
					render()
				}
			}, a.cfg.Documents.Dirs...)
		},
	}
	cmd.Flags().StringVarP(&contextFile, "context", "c", "", "YAML file holding the build context")
	return cmd
}

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load every document and handler descriptor",
		Long:  `Load every document and handler descriptor, listing the templates found. Fails when any of them cannot be loaded.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, loadErr := NewEngine(a.cfg, a.logger)
			if engine == nil {
				return ConfigError("creating engine", loadErr)
			}

			out := cmd.OutOrStdout()
			docs := engine.Documents()
			templates := 0
			for _, ns := range docs.Namespaces() {
				ids := docs.IDs(ns)
				templates += len(ids)
				fmt.Fprintf(out, "%s (%s)\n", ns, docs.Source(ns))
				for _, id := range ids {
					fmt.Fprintf(out, "  %s\n", id)
				}
			}
			fmt.Fprintf(out, "namespaces: %d, templates: %d\n", len(docs.Namespaces()), templates)

			if loadErr != nil {
				return DocumentError("invalid documents or handlers", loadErr)
			}
			return nil
		},
	}
}

func (a *app) tagsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the registered tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "TAG\tPREFIX\tSYMBOL\tHANDLER")
			for _, th := range engine.Registry().Tags() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", th.Name, orDash(strings.TrimSpace(th.Prefix)), orDash(th.Symbol), th.TypeName())
			}
			return tw.Flush()
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (a *app) configCommand() *cobra.Command {
	var showSource bool
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Show the effective configuration after merging defaults, config file, environment variables and flags.`,
		Example: `  # Show effective configuration
  fenix config show

  # Show configuration with source file path
  fenix config show --source`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if showSource {
				if a.configPath != "" {
					fmt.Fprintf(out, "Config file: %s\n\n", a.configPath)
				} else {
					fmt.Fprintln(out, "Config file: (none, using defaults)")
					fmt.Fprintln(out)
				}
			}

			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
	showCmd.Flags().BoolVar(&showSource, "source", false, "show config file source")
	configCmd.AddCommand(showCmd)
	return configCmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fenix %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}
