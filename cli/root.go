package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"exiliumcore/exilium"
)

var (
	cfgPath string
	verbose bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "exiliumcore",
		Short:         "Game economy persistence core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	cmd.AddCommand(serveCmd(), importEconomyCmd(), migrateCmd())
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd().Execute(); err != nil {
		fmt.Println(err)
		return 1
	}
	return 0
}

func newLogger(cfg *exilium.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(parsed)
	return zcfg.Build()
}

func loadConfig() (*exilium.Config, error) {
	return exilium.LoadConfig(cfgPath)
}
