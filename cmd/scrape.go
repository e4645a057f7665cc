package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/pipeline"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run the acquisition pipeline for a saved job or ad-hoc parameters",
	Long: `Builds search queries, fetches results, enriches social profiles, extracts
candidates with the configured model, and imports them as raw leads.

Interrupt with Ctrl-C to stop the run between items; it is recorded as STOPPED.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		params, err := scrapeParams(cmd)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Runner.Run(ctx, params)
		if run != nil {
			printRunSummary(run)
		}
		if err != nil {
			return eris.Wrap(err, "scrape")
		}

		zap.L().Info("scrape finished",
			zap.Int64("run_id", run.ID),
			zap.String("status", string(run.Status)),
		)
		return nil
	},
}

func scrapeParams(cmd *cobra.Command) (pipeline.Params, error) {
	jobID, _ := cmd.Flags().GetInt64("job-id")
	woj, _ := cmd.Flags().GetString("wojewodztwo")
	city, _ := cmd.Flags().GetString("city")
	campType, _ := cmd.Flags().GetString("camp-type")
	category, _ := cmd.Flags().GetString("category")
	rawMethod, _ := cmd.Flags().GetString("method")

	method, err := model.ParseMethod(rawMethod)
	if err != nil {
		return pipeline.Params{}, err
	}
	return pipeline.Params{
		JobID:       jobID,
		Wojewodztwo: woj,
		City:        city,
		CampType:    campType,
		Category:    category,
		Method:      method,
	}, nil
}

func printRunSummary(run *model.SearchJobRun) {
	fmt.Fprintf(os.Stderr, "Run %d (job %d): %s\n", run.ID, run.JobID, run.Status)
	if run.Logs != "" {
		fmt.Fprintln(os.Stdout, run.Logs)
	}
}

func init() {
	f := scrapeCmd.Flags()
	f.Int64("job-id", 0, "saved search job ID")
	f.String("wojewodztwo", "", "voivodeship (ad-hoc runs)")
	f.String("city", "", "city (ad-hoc runs)")
	f.String("camp-type", "", "camp type, e.g. Półkolonie (ad-hoc runs)")
	f.String("category", "", "activity category (required for ad-hoc runs)")
	f.String("method", "", "ALL, SEARCH_ENGINE or SOCIAL_PROFILE (ad-hoc runs)")
	rootCmd.AddCommand(scrapeCmd)
}
