package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/campleads/internal/model"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage saved search jobs",
}

// -- jobs create --

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Save one search job from flags, or many from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var jobs []model.SearchJob
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			fh, err := os.Open(path)
			if err != nil {
				return eris.Wrap(err, "jobs create: open file")
			}
			defer fh.Close() //nolint:errcheck
			jobs, err = parseJobsFile(fh)
			if err != nil {
				return err
			}
		} else {
			job := model.SearchJob{}
			job.Wojewodztwo, _ = cmd.Flags().GetString("wojewodztwo")
			job.City, _ = cmd.Flags().GetString("city")
			job.CampType, _ = cmd.Flags().GetString("camp-type")
			job.Category, _ = cmd.Flags().GetString("category")
			job.QueryNotes, _ = cmd.Flags().GetString("notes")
			job.RequestedBy, _ = cmd.Flags().GetString("requested-by")
			method, _ := cmd.Flags().GetString("method")
			job.Method = model.Method(method)
			jobs = []model.SearchJob{job}
		}

		for i := range jobs {
			if err := jobs[i].Normalize(cfg.Pipeline.DefaultCampType); err != nil {
				return eris.Wrapf(err, "jobs create: job %d", i+1)
			}
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		for _, job := range jobs {
			id, err := st.CreateJob(ctx, job)
			if err != nil {
				return eris.Wrap(err, "jobs create")
			}
			zap.L().Info("search job created", zap.Int64("job_id", id), zap.String("category", job.Category))
			fmt.Fprintln(os.Stdout, id)
		}
		return nil
	},
}

// parseJobsFile reads a YAML list of jobs, or a document with a top-level
// "jobs" list.
func parseJobsFile(r io.Reader) ([]model.SearchJob, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "jobs file: read")
	}

	var list []model.SearchJob
	if err := yaml.Unmarshal(data, &list); err == nil {
		return requireJobs(list)
	}

	var doc struct {
		Jobs []model.SearchJob `yaml:"jobs"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "jobs file: parse yaml")
	}
	return requireJobs(doc.Jobs)
}

func requireJobs(jobs []model.SearchJob) ([]model.SearchJob, error) {
	if len(jobs) == 0 {
		return nil, eris.New("jobs file: no jobs defined")
	}
	return jobs, nil
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved search jobs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		jobs, err := st.ListJobs(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}
		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(os.Stdout, jobs)
		return nil
	},
}

// formatJobsList writes a tabular list of jobs to out.
func formatJobsList(out io.Writer, jobs []model.SearchJob) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCAMP_TYPE\tCATEGORY\tCITY\tMETHOD\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t---------\t--------\t----\t------\t-------")
	for _, j := range jobs {
		city := j.City
		if city == "" {
			city = "-"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			j.ID,
			j.CampType,
			j.Category,
			city,
			j.Method,
			j.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func init() {
	f := jobsCreateCmd.Flags()
	f.String("file", "", "YAML file with a list of jobs")
	f.String("wojewodztwo", "", "voivodeship")
	f.String("city", "", "city")
	f.String("camp-type", "", "camp type (default from config)")
	f.String("category", "", "activity category")
	f.String("method", "", "ALL, SEARCH_ENGINE or SOCIAL_PROFILE")
	f.String("notes", "", "free-form query notes")
	f.String("requested-by", "", "who asked for the job")

	jobsListCmd.Flags().Int("limit", 20, "max number of jobs to display")

	jobsCmd.AddCommand(jobsCreateCmd)
	jobsCmd.AddCommand(jobsListCmd)
	rootCmd.AddCommand(jobsCmd)
}
