package cmd

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/AnnixInvestments/annix-sub017/config"
)

var (
	configPath string
	debug      bool

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "procurement",
		Short: "BOQ distribution service",
		Long: `BOQ distribution service for the piping procurement platform.

Functions:
- Consolidate RFQ line items into BOQ sections
- Match BOQ sections to approved suppliers by capability
- Serve the supplier portal and track quote responses
- Notify and remind suppliers by email`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogging(cfg)
			return nil
		},
	}
)

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory holding config.yaml or app.env")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// setupLogging configures the global zerolog logger. LOG_LEVEL overrides the configured level.
func setupLogging(c config.Config) {
	level := c.Logging.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if debug {
		level = "debug"
	}

	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	if c.Environment == "development" || c.Logging.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func debugEnabled() bool {
	return zerolog.GlobalLevel() <= zerolog.DebugLevel
}
