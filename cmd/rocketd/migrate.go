package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rocket-mimo/internal/config"
	"rocket-mimo/internal/storage/migrations"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schemas",
	}
	postgresDSN := func() (string, error) {
		if err := config.Prepare(v, cfgFile); err != nil {
			return "", err
		}
		dsn := v.GetString("postgres_dsn")
		if dsn == "" {
			return "", errors.New("postgres_dsn is required")
		}
		return dsn, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations (PostgreSQL and, when configured, ClickHouse)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := postgresDSN()
			if err != nil {
				return err
			}
			if err := migrations.RunPostgresMigrations(dsn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "postgres: up to date")

			if chDSN := v.GetString("clickhouse_dsn"); chDSN != "" {
				conn, err := migrations.RunClickhouseMigrations(cmd.Context(), chDSN)
				if err != nil {
					return err
				}
				_ = conn.Close()
				fmt.Fprintln(cmd.OutOrStdout(), "clickhouse: up to date")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last PostgreSQL migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := postgresDSN()
			if err != nil {
				return err
			}
			if err := migrations.RollbackPostgresMigration(dsn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "postgres: rolled back one step")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the PostgreSQL schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := postgresDSN()
			if err != nil {
				return err
			}
			version, dirty, err := migrations.PostgresVersion(dsn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "postgres: version %d dirty=%t\n", version, dirty)
			return nil
		},
	})
	return cmd
}
