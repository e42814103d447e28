package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/term"

	"daochain/config"
	"daochain/observability/logging"
)

const programName = "daod"

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

// textLogs resolves the configured log format. "auto" follows whether stdout
// is attached to a terminal.
func textLogs(format string, isTerminal func() bool) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return true
	case "json":
		return false
	default:
		return isTerminal()
	}
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func commonRun(cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	if globalFlags.debug {
		level = "debug"
	}
	logger := logging.Setup(programName, cfg.Environment, logging.Options{
		Level:      level,
		Text:       textLogs(cfg.Log.Format, stdoutIsTerminal),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if _, err := maxprocs.Set(maxprocs.Logger(slogPrintf)); err != nil {
		logger.Warn("set GOMAXPROCS", "error", err)
	}
	logger.Info("version: "+version, "component", programName)
	return logger
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the daod version",
		Annotations: map[string]string{"config": "skip"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", programName, version)
		},
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "DAO governance and staking chain node",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "./config.toml", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations["config"] == "skip" {
			return nil
		}
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	rootCmd.AddCommand(startCommand())
	rootCmd.AddCommand(initCommand())
	rootCmd.AddCommand(genesisCommand())
	rootCmd.AddCommand(exportEventsCommand())
	rootCmd.AddCommand(versionCommand())
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
