package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tordrt/relschema"
	"github.com/tordrt/relschema/internal/config"
	"github.com/tordrt/relschema/internal/formatter"
	"github.com/tordrt/relschema/internal/graph"
	"github.com/tordrt/relschema/pkg/logger"
)

// app carries what the persistent pre-run resolves for every command
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "relschema",
		Short: "Infer table relationships and creation order from a live database",
		Long: `relschema reads the catalog of a PostgreSQL, MySQL, SQLite or SQL Server database,
maps every column to a semantic type and infers belongsTo, hasOne, hasMany, belongsToMany
and polymorphic relationships, plus a table creation order that tolerates cycles.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		RunE:              a.runAnalyze,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default: ./relschema.yaml)")
	pf.String("url", "", "Database URL (postgres://, mysql://, sqlite://, sqlserver://)")
	pf.StringP("connection", "c", "", "Named connection from the config file")
	pf.StringP("schema", "s", "", "Database schema (default: public, dbo or the URL's database)")
	pf.StringP("format", "f", formatter.FormatText, "Output format: "+strings.Join(formatter.Formats, ", "))
	pf.StringP("output", "o", "", "Output file (default: stdout)")
	pf.StringSliceP("exclude", "x", nil, "Tables to skip (comma-separated)")
	pf.Duration("timeout", 30*time.Second, "Abort after this long")
	pf.BoolP("verbose", "v", false, "Log every introspected table")

	f := cmd.Flags()
	f.StringSliceP("tables", "t", nil, "Specific tables (comma-separated, optional)")
	f.StringP("output-dir", "d", "", "Output directory for multi-file output (text or markdown)")
	f.Int("concurrency", 4, "Tables introspected at once")

	cmd.AddCommand(newTablesCmd(a), newOrderCmd(a))
	return cmd
}

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables relschema would analyze",
		Args:  cobra.NoArgs,
		RunE:  a.runTables,
	}
}

func newOrderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Print the table creation order and the foreign keys a cycle defers",
		Args:  cobra.NoArgs,
		RunE:  a.runOrder,
	}
	cmd.Flags().StringSliceP("tables", "t", nil, "Specific tables (comma-separated, optional)")
	cmd.Flags().Int("concurrency", 4, "Tables introspected at once")
	return cmd
}

// load resolves configuration and the logger before any command runs
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile, ".", cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(cmd.ErrOrStderr(), cfg.Verbose)
	if cfg.File != "" {
		a.log.WithField("file", cfg.File).Debug("config loaded")
	}
	return nil
}

// options builds library options from the resolved config
func (a *app) options(schemaName string) *relschema.Options {
	return &relschema.Options{
		Tables:       a.cfg.Tables,
		IgnoreTables: ignoreList(a.cfg),
		Schema:       schemaName,
		Concurrency:  a.cfg.Concurrency,
		Timeout:      a.cfg.Timeout,
		Logger:       a.log,
		Cache:        relschema.NewCache(0, a.cfg.CacheTTL),
	}
}

// ignoreList applies the default ignore list only when no tables were named;
// --exclude always applies
func ignoreList(cfg *config.Config) []string {
	if len(cfg.Tables) > 0 {
		return slices.Clone(cfg.Exclude)
	}
	return append(slices.Clone(cfg.IgnoreTables), cfg.Exclude...)
}

// checkFormat rejects unknown formats before connecting
func checkFormat(cfg *config.Config) error {
	if cfg.OutputDir != "" {
		switch cfg.Format {
		case formatter.FormatText, formatter.FormatMarkdown, "md":
			return nil
		}
		return fmt.Errorf("%w %q for --output-dir (use text or markdown)", formatter.ErrUnknownFormat, cfg.Format)
	}
	_, err := formatter.New(cfg.Format, io.Discard)
	return err
}

func (a *app) runAnalyze(cmd *cobra.Command, _ []string) error {
	if err := checkFormat(a.cfg); err != nil {
		return err
	}
	url, schemaName, err := a.cfg.ResolveConnection()
	if err != nil {
		return err
	}

	s, err := relschema.Analyze(cmd.Context(), url, a.options(schemaName))
	if err != nil {
		return fmt.Errorf("failed to analyze schema: %w", err)
	}

	if a.cfg.OutputDir != "" {
		if err := relschema.FormatSchema(s, &relschema.OutputOptions{OutputDir: a.cfg.OutputDir, Format: a.cfg.Format}); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		return nil
	}

	return a.withOutput(cmd, func(w io.Writer) error {
		return relschema.FormatSchema(s, &relschema.OutputOptions{Writer: w, Format: a.cfg.Format})
	})
}

func (a *app) runTables(cmd *cobra.Command, _ []string) error {
	if err := formatter.WriteTableList(io.Discard, a.cfg.Format, nil); err != nil {
		return err
	}
	url, schemaName, err := a.cfg.ResolveConnection()
	if err != nil {
		return err
	}

	opts := a.options(schemaName)
	names, err := relschema.ListTables(cmd.Context(), url, opts)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	return a.withOutput(cmd, func(w io.Writer) error {
		return formatter.WriteTableList(w, a.cfg.Format, names)
	})
}

func (a *app) runOrder(cmd *cobra.Command, _ []string) error {
	if err := formatter.WriteOrder(io.Discard, a.cfg.Format, &relschema.Schema{}, nil); err != nil {
		return err
	}
	url, schemaName, err := a.cfg.ResolveConnection()
	if err != nil {
		return err
	}

	s, err := relschema.Analyze(cmd.Context(), url, a.options(schemaName))
	if err != nil {
		return fmt.Errorf("failed to analyze schema: %w", err)
	}

	_, cycle := graph.Build(s.Tables).HasCycle()
	if len(cycle) > 0 {
		a.log.WithFields(logrus.Fields{
			"cycle":    strings.Join(cycle, " → "),
			"deferred": len(s.DeferredEdges),
		}).Warn("dependency cycle: deferred foreign keys must be added after their tables exist")
	}

	return a.withOutput(cmd, func(w io.Writer) error {
		return formatter.WriteOrder(w, a.cfg.Format, s, cycle)
	})
}

// withOutput runs write against --output or the command's stdout
func (a *app) withOutput(cmd *cobra.Command, write func(w io.Writer) error) error {
	if a.cfg.Output == "" {
		if err := write(cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		return nil
	}

	f, err := os.Create(a.cfg.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to format output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
