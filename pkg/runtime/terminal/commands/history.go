package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type HistoryCmd struct {
	env       *Env
	historyDB string
	runID     string
	limit     int
}

func NewHistoryCmd(env *Env) *cobra.Command {
	hc := &HistoryCmd{env: env}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or the action reports of one run",
		Args:  cobra.NoArgs,
		RunE:  hc.run,
	}

	cmd.Flags().StringVar(&hc.historyDB, "history-db", "", "DuckDB file holding the run history")
	cmd.Flags().StringVar(&hc.runID, "run", "", "Show the action reports of this run")
	cmd.Flags().IntVar(&hc.limit, "limit", 20, "Number of runs to list, 0 lists all")

	return cmd
}

func (hc *HistoryCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	path := hc.historyDB
	if !cmd.Flags().Changed("history-db") {
		path = hc.env.Settings.HistoryDB
	}
	if path == "" {
		return fmt.Errorf("no history database configured, use --history-db or history_db")
	}

	recorder, closeDB, err := openRecorder(path)
	if err != nil {
		return err
	}
	defer closeDB()

	if hc.runID != "" {
		reports, err := recorder.Reports(ctx, hc.runID)
		if err != nil {
			return err
		}
		return hc.env.Reporter.Actions(fmt.Sprintf("Run %s", hc.runID), reports)
	}

	runs, err := recorder.Runs(ctx, hc.limit)
	if err != nil {
		return err
	}
	return hc.env.Reporter.Runs("Recorded runs", runs)
}
