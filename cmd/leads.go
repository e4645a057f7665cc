package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/campleads/internal/config"
	"github.com/sells-group/campleads/internal/export"
	"github.com/sells-group/campleads/internal/leads"
	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Import, review, and export raw leads",
}

// -- leads import --

var leadsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a lead from flags, or many from an .xlsx/.csv file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rawSource, _ := cmd.Flags().GetString("source")
		source := model.SourceMethod(strings.ToUpper(rawSource))
		if source != model.SourceGoogleDork && source != model.SourceFacebookProfile {
			return eris.Errorf("leads import: unknown source %q", rawSource)
		}

		var inputs []model.LeadInput
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			var err error
			inputs, err = export.ReadLeadInputs(ctx, path)
			if err != nil {
				return err
			}
		} else {
			var in model.LeadInput
			in.OrganizationName, _ = cmd.Flags().GetString("name")
			in.Category, _ = cmd.Flags().GetString("category")
			in.City, _ = cmd.Flags().GetString("city")
			in.PhoneRaw, _ = cmd.Flags().GetString("phone")
			in.Email, _ = cmd.Flags().GetString("email")
			in.WebsiteURL, _ = cmd.Flags().GetString("website")
			in.SocialURL, _ = cmd.Flags().GetString("social")
			inputs = []model.LeadInput{in}
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := importLeads(cmd, leads.NewImporter(st), inputs, source)
		if err != nil {
			return err
		}
		zap.L().Info("leads import complete",
			zap.Int("inserted", sum.Inserted),
			zap.Int("duplicates", sum.Duplicates),
			zap.Int("missing_phone", sum.MissingPhone),
		)
		return nil
	},
}

type importSummary struct {
	Inserted     int
	Duplicates   int
	MissingPhone int
}

// importLeads imports inputs in order and prints one outcome per line.
func importLeads(cmd *cobra.Command, im *leads.Importer, inputs []model.LeadInput, source model.SourceMethod) (importSummary, error) {
	var sum importSummary
	for i, in := range inputs {
		outcome, err := im.Import(cmd.Context(), in, source)
		if err != nil {
			return sum, eris.Wrapf(err, "leads import: row %d", i+1)
		}
		switch {
		case outcome.Inserted:
			sum.Inserted++
		case outcome.Reason == leads.ReasonDuplicatePhone:
			sum.Duplicates++
		default:
			sum.MissingPhone++
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Lead: %s\n", outcome)
	}
	return sum, nil
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List raw leads, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListLeads(ctx, leadFilterFromFlags(cmd))
		if err != nil {
			return eris.Wrap(err, "leads list")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadsList(os.Stdout, list)
		return nil
	},
}

func leadFilterFromFlags(cmd *cobra.Command) store.LeadFilter {
	status, _ := cmd.Flags().GetString("status")
	source, _ := cmd.Flags().GetString("source")
	city, _ := cmd.Flags().GetString("city")
	limit, _ := cmd.Flags().GetInt("limit")
	return store.LeadFilter{
		Status:       model.LeadStatus(strings.ToUpper(status)),
		SourceMethod: model.SourceMethod(strings.ToUpper(source)),
		City:         city,
		Limit:        limit,
	}
}

// formatLeadsList writes a tabular list of leads to out.
func formatLeadsList(out io.Writer, list []model.RawLead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tORGANIZATION\tPHONE\tCITY\tCATEGORY\tSTATUS\tVERIFIED")
	_, _ = fmt.Fprintln(w, "--\t------------\t-----\t----\t--------\t------\t--------")
	for _, l := range list {
		name := l.OrganizationName
		if len([]rune(name)) > 30 {
			name = string([]rune(name)[:27]) + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%t\n",
			l.ID,
			name,
			l.PhoneNormalized,
			l.City,
			l.Category,
			l.Status,
			l.Verified,
		)
	}
	_ = w.Flush()
}

// -- leads categorize --

var leadsCategorizeCmd = &cobra.Command{
	Use:   "categorize <lead-id>",
	Short: "Ask the model to categorize and verify one lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Errorf("leads categorize: invalid lead id %q", args[0])
		}
		if err := cfg.Validate(config.ComponentCategorize); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		aiClient, err := newAIClient(ctx)
		if err != nil {
			return err
		}

		res, err := leads.NewCategorizer(st, aiClient).Categorize(ctx, id)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// -- leads export --

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to an .xlsx or .csv file for review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		out, _ := cmd.Flags().GetString("out")
		write := export.WriteLeadsXLSX
		switch strings.ToLower(filepath.Ext(out)) {
		case ".xlsx":
		case ".csv":
			write = export.WriteLeadsCSV
		default:
			return eris.Errorf("leads export: unsupported file type %q (use .xlsx or .csv)", filepath.Ext(out))
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListLeads(ctx, leadFilterFromFlags(cmd))
		if err != nil {
			return eris.Wrap(err, "leads export")
		}

		fh, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "leads export: create file")
		}
		if err := write(fh, list); err != nil {
			_ = fh.Close()
			return err
		}
		if err := fh.Close(); err != nil {
			return eris.Wrap(err, "leads export: close file")
		}

		zap.L().Info("leads exported", zap.Int("count", len(list)), zap.String("file", out))
		return nil
	},
}

func addLeadFilterFlags(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().String("status", "", "filter by lead status (NEW, CATEGORIZED)")
	cmd.Flags().String("source", "", "filter by source method (GOOGLE_DORK, FACEBOOK_PROFILE)")
	cmd.Flags().String("city", "", "filter by city")
	cmd.Flags().Int("limit", defaultLimit, "max number of leads")
}

func init() {
	f := leadsImportCmd.Flags()
	f.String("file", "", "import every row of an .xlsx or .csv file")
	f.String("source", string(model.SourceGoogleDork), "source method recorded on imported leads")
	f.String("name", "", "organization name")
	f.String("category", "", "activity category")
	f.String("city", "", "city")
	f.String("phone", "", "phone number as written")
	f.String("email", "", "email address")
	f.String("website", "", "website URL")
	f.String("social", "", "social profile URL")

	addLeadFilterFlags(leadsListCmd, 20)
	addLeadFilterFlags(leadsExportCmd, 10000)
	leadsExportCmd.Flags().String("out", "leads.xlsx", "output file (.xlsx or .csv)")

	leadsCmd.AddCommand(leadsImportCmd)
	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsCategorizeCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}
