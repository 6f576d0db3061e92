// Command rocketd runs the rocket launch-event service.
//
// Usage:
//
//	rocketd serve --config rocketd.yaml
//	rocketd migrate up --postgres-dsn postgres://...
//	rocketd networks
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rocket-mimo/internal/config"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "rocketd",
		Short:         "Rocket launch-event auction service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("postgres-dsn", "", "PostgreSQL connection string")
	root.PersistentFlags().String("clickhouse-dsn", "", "ClickHouse connection string (event log)")
	mustBind(v, root.PersistentFlags(), "log_level", "log-level")
	mustBind(v, root.PersistentFlags(), "postgres_dsn", "postgres-dsn")
	mustBind(v, root.PersistentFlags(), "clickhouse_dsn", "clickhouse-dsn")

	root.AddCommand(newServeCmd(v), newMigrateCmd(v), newNetworksCmd(v))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func mustBind(v *viper.Viper, flags *pflag.FlagSet, key, flag string) {
	if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// loadConfig reads the configuration for commands that need all of it.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	return config.Load(v, cfgFile)
}

// newLogger builds the production zap logger at level. "debug" switches to
// the development encoder.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
