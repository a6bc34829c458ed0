package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/config"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/logger"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/calibration.yaml"

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// load reads the configuration and installs the default logger. Flags win
// over the file.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	logger.SetDefault(logger.NewFormat(cfg.LogFormat, cfg.LogLevel, os.Stderr))
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "q2kcal",
		Short:         "Calibrate QUAL2K river water-quality models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "project configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (text, json)")

	cmd.AddCommand(
		newCalibrateCommand(opts),
		newEvaluateCommand(opts),
		newRenderCommand(opts),
		newHistoryCommand(opts),
		newPresetsCommand(),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
