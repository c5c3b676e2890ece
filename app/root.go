// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/recodex/sis-binding/internal/config"
	"github.com/recodex/sis-binding/internal/logger"
)

var (
	cfg        config.Config
	configPath string
	err        error
)

var rootCmd = &cobra.Command{
	Use:   "sis-binding",
	Short: "sis-binding links the university SIS with ReCodEx",
	Long: `sis-binding is an integration service between the university student
information system (SIS) and ReCodEx. It mirrors courses, scheduling events,
and enrollments into a local cache, reconciles user profiles between the two
systems, and proxies group management operations to ReCodEx.`,
	Args: cobra.OnlyValidArgs,
}

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration directory")
}

// loadConfig reads the configuration and initializes logging; shared by all
// commands that talk to the database or the remote APIs.
func loadConfig() error {
	if cfg, err = config.ReadConfig(configPath); err != nil {
		return err
	}

	return logger.Init(cfg.Log)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
