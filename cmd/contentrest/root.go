package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/contentrest/internal/config"
	logpkg "github.com/kailas-cloud/contentrest/internal/logger"
	"github.com/kailas-cloud/contentrest/internal/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "contentrest",
	Short:         "JSON:API content delivery over a configurable schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "contentrest", version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: config/<ENV>.yaml)")
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the --config file, or the file selected by ENV.
func loadConfig() (*config.Config, string, error) {
	env := config.GetEnv()
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	return &cfg, env, nil
}

func newLogger(env string, cfg *config.Config) (*zap.Logger, error) {
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}
