package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/campleads/internal/config"
	"github.com/sells-group/campleads/internal/dork"
	"github.com/sells-group/campleads/internal/model"
	"github.com/sells-group/campleads/internal/profile"
)

var dorkCmd = &cobra.Command{
	Use:   "dork",
	Short: "Preview and test search queries",
}

// -- dork preview --

var dorkPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the queries a job would run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		city, _ := cmd.Flags().GetString("city")
		campType, _ := cmd.Flags().GetString("camp-type")
		category, _ := cmd.Flags().GetString("category")
		rawMethod, _ := cmd.Flags().GetString("method")

		method, err := model.ParseMethod(rawMethod)
		if err != nil {
			return err
		}
		if campType == "" {
			campType = cfg.Pipeline.DefaultCampType
		}

		printQueries(cmd.OutOrStdout(), dork.Build(dork.Params{
			City:     city,
			CampType: campType,
			Category: category,
			Method:   method,
		}))
		return nil
	},
}

func printQueries(out io.Writer, queries []string) {
	for _, q := range queries {
		_, _ = fmt.Fprintln(out, q)
	}
}

// -- dork test --

var dorkTestCmd = &cobra.Command{
	Use:   "test <query>",
	Short: "Run one query against the search vendor and print the raw results",
	Long: `Runs a single search and prints the organic results as JSON. With
--profiles, every social profile link in the results is also fetched and its
flattened text printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(config.ComponentSearch); err != nil {
			return err
		}
		client := newSearchClient()

		items, err := client.Search(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "dork test")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			return err
		}

		withProfiles, _ := cmd.Flags().GetBool("profiles")
		if !withProfiles {
			return nil
		}

		enricher := profile.NewEnricher(client)
		for _, item := range items {
			id := profile.ExtractID(item.Link)
			if id == "" {
				continue
			}
			text, err := enricher.FetchText(ctx, id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "profile %s: %v\n", id, err)
				continue
			}
			fmt.Fprintf(os.Stdout, "--- profile %s ---\n%s\n", id, text)
		}
		return nil
	},
}

func init() {
	f := dorkPreviewCmd.Flags()
	f.String("city", "", "city")
	f.String("camp-type", "", "camp type (default from config)")
	f.String("category", "", "activity category")
	f.String("method", "", "ALL, SEARCH_ENGINE or SOCIAL_PROFILE")

	dorkTestCmd.Flags().Bool("profiles", false, "also fetch social profiles found in the results")

	dorkCmd.AddCommand(dorkPreviewCmd)
	dorkCmd.AddCommand(dorkTestCmd)
	rootCmd.AddCommand(dorkCmd)
}
