package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect scrape run history",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scrape runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		jobID, _ := cmd.Flags().GetInt64("job-id")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(strings.ToUpper(status)),
			JobID:  jobID,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs, time.Now())
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its full log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Errorf("runs show: invalid run id %q", args[0])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, id)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (RUNNING, DONE, FAILED, STOPPED)")
	runsListCmd.Flags().Int64("job-id", 0, "filter by search job ID")
	runsListCmd.Flags().Int("limit", 20, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to out. Running runs show
// their elapsed time as of now.
func formatRunsList(out io.Writer, runs []model.SearchJobRun, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tJOB\tSTATUS\tSTARTED\tDURATION\tLEADS")
	_, _ = fmt.Fprintln(w, "--\t---\t------\t-------\t--------\t-----")

	for _, r := range runs {
		end := now
		if r.FinishedAt != nil {
			end = *r.FinishedAt
		}
		job := "ad-hoc"
		if r.JobID > 0 {
			job = strconv.FormatInt(r.JobID, 10)
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
			r.ID,
			job,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			end.Sub(r.StartedAt).Round(time.Second),
			countInserted(r.Logs),
		)
	}
	_ = w.Flush()
}

// countInserted counts "Lead: inserted" lines in a run log.
func countInserted(logs string) int {
	n := 0
	for _, line := range strings.Split(logs, "\n") {
		if line == "Lead: inserted" {
			n++
		}
	}
	return n
}
