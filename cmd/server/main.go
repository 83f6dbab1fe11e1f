package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jason-s-yu/streamify/internal/config"
)

var configFiles []string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "streamify",
		Short:         "Language exchange API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", []string{"config/config.json"}, "config files; the environment overrides them")
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

// loadConfig reads the configuration and builds a logger at its level.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configFiles...)
	if err != nil {
		return nil, nil, err
	}
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		logger.Warnf("invalid LOG_LEVEL %q, using info", cfg.App.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.App.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return cfg, logger, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Errorf("streamify: %v", err)
		os.Exit(1)
	}
}
