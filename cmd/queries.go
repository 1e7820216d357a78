package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethpandaops/querycat/pkg/catalog"
	"github.com/ethpandaops/querycat/pkg/driver"
	"github.com/ethpandaops/querycat/pkg/history"
	"github.com/ethpandaops/querycat/pkg/output"
	"github.com/ethpandaops/querycat/pkg/resolver"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// ErrValidationFailed is returned when one or more sources fail to resolve
var ErrValidationFailed = errors.New("catalog validation failed")

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	listTemplate      string
	renderParams      []string
	renderInteractive bool
	historyLimit      int64
	historyClear      bool
	historyTemplate   string
)

// queriesCmd represents the queries command group
//
//nolint:gochecknoglobals // Cobra commands are typically global
var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Inspect, resolve and run catalog queries",
	Long:  `Commands for listing query sources, resolving them with parameters and dispatching them to a backend.`,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var queriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every query source",
	Long:  `List every query source from the built-in and configured catalogs. Use --template to format each source with a Go template.`,
	Args:  cobra.NoArgs,
	RunE:  runQueriesList,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var queriesShowCmd = &cobra.Command{
	Use:   "show <source>",
	Short: "Show a source's parameters and template",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueriesShow,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var queriesRenderCmd = &cobra.Command{
	Use:   "render <source>",
	Short: "Resolve a source into a query string",
	Long:  `Resolve a source with -p key=value overrides and print the query. With --interactive, missing parameters are prompted for.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQueriesRender,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var queriesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that every source resolves",
	Long:  `Resolve every source with its defaults plus sample values for required parameters and report malformed templates.`,
	Args:  cobra.NoArgs,
	RunE:  runQueriesValidate,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var queriesRunCmd = &cobra.Command{
	Use:   "run <source>",
	Short: "Resolve a source and run it against the configured backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueriesRun,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var queriesHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear the history of dispatched queries",
	Args:  cobra.NoArgs,
	RunE:  runQueriesHistory,
}

func init() {
	rootCmd.AddCommand(queriesCmd)
	queriesCmd.AddCommand(queriesListCmd, queriesShowCmd, queriesRenderCmd, queriesValidateCmd, queriesRunCmd, queriesHistoryCmd)

	queriesListCmd.Flags().StringVar(&listTemplate, "template", "", "Go template applied to each source (sprig functions available)")

	for _, c := range []*cobra.Command{queriesRenderCmd, queriesRunCmd} {
		c.Flags().StringArrayVarP(&renderParams, "param", "p", nil, "parameter override as key=value (repeatable)")
		c.Flags().BoolVarP(&renderInteractive, "interactive", "i", false, "prompt for missing required parameters")
	}

	queriesHistoryCmd.Flags().Int64Var(&historyLimit, "limit", 20, "number of records to show (0 for all)")
	queriesHistoryCmd.Flags().BoolVar(&historyClear, "clear", false, "delete all history records")
	queriesHistoryCmd.Flags().StringVar(&historyTemplate, "template", "", "Go template applied to each record")
}

func runQueriesList(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	entries := env.store.Sources()

	if listTemplate != "" {
		items := make([]interface{}, 0, len(entries))
		for _, e := range entries {
			items = append(items, map[string]interface{}{
				"Name":        e.Source.Name,
				"Catalog":     e.Catalog.Name,
				"Description": e.Source.Description,
				"Template":    e.Source.Template,
				"Tags":        e.Catalog.Metadata.Tags,
			})
		}
		return output.NewTemplateEngine().RenderEach(cmd.OutOrStdout(), listTemplate, items)
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Source.Name, e.Catalog.Name, e.Source.Description})
	}

	return output.Table(cmd.OutOrStdout(), []string{"SOURCE", "CATALOG", "DESCRIPTION"}, rows)
}

func runQueriesShow(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	entry, err := env.store.Lookup(args[0])
	if err != nil {
		return err
	}

	plan, err := resolver.Plan(entry.Catalog, entry.Source.Name)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Source:      %s\nCatalog:     %s\nDescription: %s\n\n", entry.Source.Name, entry.Catalog.Name, entry.Source.Description)

	if err := output.Table(w, []string{"PARAMETER", "TYPE", "DEFAULT", "REQUIRED", "ORIGIN", "DESCRIPTION"}, planRows(plan)); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "\nTemplate:\n%s\n", entry.Source.Template)

	return nil
}

func planRows(plan []resolver.Parameter) [][]string {
	rows := make([][]string, 0, len(plan))
	for _, p := range plan {
		def := "-"
		if p.HasDefault {
			def = fmt.Sprintf("%q", cast.ToString(p.Default))
		}
		rows = append(rows, []string{
			p.Name, string(p.Type), def, cast.ToString(p.Required), p.Origin, p.Description,
		})
	}

	return rows
}

// resolveWithPrompt resolves a source, prompting once for missing required
// parameters when interactive is set
func resolveWithPrompt(ctx context.Context, env *environment, p prompter, source string, overrides map[string]interface{}, interactive bool) (string, error) {
	cat, _ := env.store.Catalog(source)

	query, err := env.resolver.Resolve(cat, source, overrides)
	if err == nil || !interactive {
		return query, err
	}

	var rErr *resolver.Error
	if !errors.As(err, &rErr) || rErr.Kind != resolver.KindMissingParameter {
		return "", err
	}

	plan, planErr := resolver.Plan(cat, source)
	if planErr != nil {
		return "", planErr
	}

	if promptErr := promptMissing(ctx, p, plan, rErr.Parameters, overrides); promptErr != nil {
		return "", promptErr
	}

	return env.resolver.Resolve(cat, source, overrides)
}

func runQueriesRender(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	overrides, err := parseParams(renderParams)
	if err != nil {
		return err
	}

	query, err := resolveWithPrompt(cmd.Context(), env, surveyPrompter{}, args[0], overrides, renderInteractive)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), query)

	return nil
}

// sampleValue returns a value of the declared type used to exercise required parameters
func sampleValue(t catalog.ParameterType) interface{} {
	switch t {
	case catalog.TypeDatetime, catalog.TypeInt:
		return 0
	case catalog.TypeBool:
		return false
	case catalog.TypeList:
		return []string{"sample"}
	default:
		return "sample"
	}
}

// validateStore resolves every source and writes one line per source
func validateStore(w io.Writer, store *catalog.Store, res *resolver.Resolver) (int, error) {
	failures := 0
	entries := store.Sources()

	for _, e := range entries {
		plan, err := resolver.Plan(e.Catalog, e.Source.Name)
		if err != nil {
			return failures, err
		}

		overrides := make(map[string]interface{})
		for _, p := range plan {
			if p.Required {
				overrides[p.Name] = sampleValue(p.Type)
			}
		}

		if _, err := res.Resolve(e.Catalog, e.Source.Name, overrides); err != nil {
			failures++
			_, _ = fmt.Fprintf(w, "✗ %s (%s): %v\n", e.Source.Name, e.Catalog.Name, err)
			continue
		}
		_, _ = fmt.Fprintf(w, "✓ %s (%s): valid\n", e.Source.Name, e.Catalog.Name)
	}

	_, _ = fmt.Fprintf(w, "\n%d valid, %d errors\n", len(entries)-failures, failures)

	return failures, nil
}

func runQueriesValidate(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	failures, err := validateStore(cmd.OutOrStdout(), env.store, env.resolver)
	if err != nil {
		return err
	}
	if failures > 0 {
		return fmt.Errorf("%w: %d errors", ErrValidationFailed, failures)
	}

	return nil
}

func runQueriesRun(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	if validationErr := env.cfg.Driver.Validate(); validationErr != nil {
		return fmt.Errorf("driver config validation failed: %w", validationErr)
	}

	overrides, err := parseParams(renderParams)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drv, err := driver.New(&env.cfg.Driver, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := drv.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("Failed to close driver")
		}
	}()

	// Format values the way the backend expects unless a dialect is forced
	if env.cfg.Dialect == "" {
		if env.resolver, err = newResolver(drv.Dialect()); err != nil {
			return err
		}
	}

	source := args[0]
	query, err := resolveWithPrompt(ctx, env, surveyPrompter{}, source, overrides, renderInteractive)
	if err != nil {
		return err
	}

	if err := drv.Connect(ctx); err != nil {
		return err
	}

	cat, _ := env.store.Catalog(source)
	if err := driver.CheckTable(ctx, drv, sourceTable(cat, source, overrides)); err != nil {
		return err
	}

	result, queryErr := drv.Query(ctx, query)

	recordHistory(ctx, env.cfg, &history.Record{
		Source:     source,
		Parameters: overrides,
		Query:      query,
		Driver:     drv.Name(),
		Rows:       rowCount(result),
		Error:      errString(queryErr),
	})

	if queryErr != nil {
		return queryErr
	}

	return output.ResultTable(cmd.OutOrStdout(), result)
}

// sourceTable names the table a source reads: its args.table when declared,
// otherwise the value of its effective "table" parameter
func sourceTable(cat *catalog.QueryCatalog, source string, overrides map[string]interface{}) string {
	src, ok := cat.Source(source)
	if !ok {
		return ""
	}
	if src.Table != "" {
		return src.Table
	}

	spec, declared := cat.EffectiveParameters(src)["table"]
	if !declared {
		return ""
	}
	if v, present := overrides["table"]; present {
		return strings.TrimSpace(cast.ToString(v))
	}
	if spec.HasDefault {
		return strings.TrimSpace(cast.ToString(spec.Default))
	}

	return ""
}

// recordHistory stores a record when history is enabled. Failures are logged,
// never returned: the query itself already ran.
func recordHistory(ctx context.Context, cfg *CLIConfig, rec *history.Record) {
	if !cfg.History.Enabled {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	store, err := history.Open(ctx, &cfg.History, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to open query history")
		return
	}
	defer func() { _ = store.Close() }()

	if err := store.Add(ctx, rec); err != nil {
		logger.WithError(err).Warn("Failed to record query history")
	}
}

func rowCount(r *driver.Result) int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func runQueriesHistory(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	store, err := history.Open(cmd.Context(), &env.cfg.History, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return printHistory(cmd.Context(), cmd.OutOrStdout(), store)
}

func printHistory(ctx context.Context, w io.Writer, store *history.Store) error {
	if historyClear {
		if err := store.Clear(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, "History cleared")
		return nil
	}

	records, err := store.List(ctx, historyLimit)
	if err != nil {
		return err
	}

	if historyTemplate != "" {
		items := make([]interface{}, 0, len(records))
		for _, r := range records {
			items = append(items, r)
		}
		return output.NewTemplateEngine().RenderEach(w, historyTemplate, items)
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ExecutedAt.Format(time.RFC3339),
			r.Source,
			r.Driver,
			cast.ToString(r.Rows),
			output.Cell(strings.SplitN(r.Error, "\n", 2)[0]),
			r.ID,
		})
	}

	return output.Table(w, []string{"EXECUTED", "SOURCE", "DRIVER", "ROWS", "ERROR", "ID"}, rows)
}
