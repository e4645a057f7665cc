package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/campleads/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "campleads",
	Short: "Summer-camp lead acquisition pipeline",
	Long:  "Searches the web for Polish summer-camp organizers, extracts contact details with a generative model, and quarantines them as raw leads for review.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env file is optional; the process environment wins over it.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return eris.Wrap(err, "load .env")
		}

		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
