package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/flowlog-atlas/pkg/services/config"
	"github.com/de-tools/flowlog-atlas/pkg/services/history"
	"github.com/de-tools/flowlog-atlas/pkg/services/inventory"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
	"github.com/de-tools/flowlog-atlas/pkg/services/reconcile"
	"github.com/de-tools/flowlog-atlas/pkg/store/csv"
	"github.com/de-tools/flowlog-atlas/pkg/store/duckdb"
	historystore "github.com/de-tools/flowlog-atlas/pkg/store/duckdb/history"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	modeExport = "export"
	modeImport = "import"
)

// runFlags are shared by the single and multi commands.
type runFlags struct {
	export      bool
	importCSV   bool
	location    string
	csvPath     string
	whatIf      bool
	parallelism int
	historyDB   string
	tenant      string
}

func (f *runFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVar(&f.export, "export", false, "Export the live flow logs of a location to CSV")
	fl.BoolVar(&f.importCSV, "import", false, "Reconcile live flow logs against a CSV")
	fl.StringVar(&f.location, "location", "", "Azure region; required for export, filter for import")
	fl.StringVar(&f.csvPath, "csv", "", "CSV file to write on export or read on import")
	fl.BoolVar(&f.whatIf, "what-if", false, "Report the changes without applying them")
	fl.IntVar(&f.parallelism, "parallelism", 0, "Concurrent workers per partition (default: number of CPUs)")
	fl.StringVar(&f.historyDB, "history-db", "", "DuckDB file recording every run")
	fl.StringVar(&f.tenant, "tenant", "", "Tenant ID")

	cmd.MarkFlagsMutuallyExclusive("export", "import")
	cmd.MarkFlagsOneRequired("export", "import")
}

// applyDefaults fills every flag left unset from the settings file.
func (f *runFlags) applyDefaults(cmd *cobra.Command, s config.Settings) {
	changed := cmd.Flags().Changed
	if !changed("location") {
		f.location = s.Location
	}
	if !changed("parallelism") {
		f.parallelism = s.Parallelism
	}
	if !changed("history-db") {
		f.historyDB = s.HistoryDB
	}
	if !changed("tenant") {
		f.tenant = s.Tenant
	}
	f.location = strings.ToLower(strings.TrimSpace(f.location))
}

func (f *runFlags) mode() string {
	if f.export {
		return modeExport
	}
	return modeImport
}

type job struct {
	variant  string
	schema   csv.Schema
	platform platform.Platform
	scope    inventory.Scope
	filter   reconcile.Filter
}

func execute(ctx context.Context, env *Env, f *runFlags, j job) (err error) {
	logger := zerolog.Ctx(ctx)

	path := f.csvPath
	if path == "" {
		if f.importCSV {
			return fmt.Errorf("--csv is required with --import")
		}
		path = defaultCSVPath(j.variant, f.location)
	}
	if f.export && f.whatIf {
		logger.Warn().Msg("--what-if has no effect on export")
	}

	run, closeHistory, err := openHistory(ctx, f.historyDB, history.Meta{
		Variant:  j.variant,
		Mode:     f.mode(),
		Location: f.location,
		Source:   path,
		WhatIf:   f.whatIf,
	})
	if err != nil {
		return err
	}
	defer closeHistory()
	if run != nil {
		defer func() {
			if ferr := run.Finish(ctx, err); ferr != nil {
				logger.Warn().Err(ferr).Msg("failed to finish run history")
			}
		}()
	}

	if f.export {
		return exportInventory(ctx, env, f, j, path, run)
	}
	return importInventory(ctx, env, f, j, path, run)
}

func exportInventory(ctx context.Context, env *Env, f *runFlags, j job, path string, run *history.Run) error {
	records, err := inventory.NewExporter(j.platform).Export(ctx, f.location, j.scope)
	if err != nil {
		return err
	}
	if err := csv.WriteFile(path, j.schema, records); err != nil {
		return err
	}
	if run != nil {
		run.Exported(len(records))
	}

	zerolog.Ctx(ctx).Info().Str("csv", path).Int("flow_logs", len(records)).Msg("inventory exported")
	return env.Reporter.Inventory(fmt.Sprintf("Flow logs in %s", f.location), records)
}

func importInventory(ctx context.Context, env *Env, f *runFlags, j job, path string, run *history.Run) error {
	desired, err := csv.ReadFile(path, j.schema)
	if err != nil {
		return err
	}

	filter := j.filter
	filter.Location = f.location
	filter.WhatIf = f.whatIf

	r := reconcile.NewReconciler(j.platform, reconcile.Config{
		Parallelism: f.parallelism,
		OnPartition: func(ctx context.Context, p reconcile.Partition, reports []domain.ActionReport) error {
			if err := env.Reporter.Actions(partitionTitle(p, f.whatIf), reports); err != nil {
				return err
			}
			if run != nil {
				return run.Record(ctx, reports)
			}
			return nil
		},
	})

	reports, err := r.Reconcile(ctx, desired, filter)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("summary", export.Summary(reports)).Msg("reconcile finished")
	return nil
}

func partitionTitle(p reconcile.Partition, whatIf bool) string {
	location := p.Location
	if location == "" {
		location = "all locations"
	}
	title := fmt.Sprintf("%s / %s: %d flow log(s) in %s",
		p.Subscription, location, p.Records, p.Duration.Round(time.Millisecond))
	if whatIf {
		title += " [what if]"
	}
	return title
}

func defaultCSVPath(variant, location string) string {
	return fmt.Sprintf("flowlogs-%s-%s.csv", variant, location)
}

// openHistory starts a recorded run when a history database is configured.
// The returned close function is always safe to call.
func openHistory(ctx context.Context, path string, meta history.Meta) (*history.Run, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	recorder, closeDB, err := openRecorder(path)
	if err != nil {
		return nil, func() {}, err
	}
	run, err := recorder.Begin(ctx, meta)
	if err != nil {
		closeDB()
		return nil, func() {}, err
	}
	zerolog.Ctx(ctx).Info().Str("run_id", run.ID()).Str("history_db", path).Msg("recording run")
	return run, closeDB, nil
}

func openRecorder(path string) (*history.Recorder, func(), error) {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: path})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	s, err := historystore.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return history.NewRecorder(db, s), func() { _ = db.Close() }, nil
}
