package commands

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dvloznov/spendbook/internal/store/sqlite"
)

func newMigrateCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
	}
	cmd.AddCommand(
		newMigrateStepCommand(e, "up", "Apply pending migrations", sqlite.Migrate),
		newMigrateStepCommand(e, "down", "Roll back every migration", sqlite.MigrateDown),
		newMigrateVersionCommand(e),
	)
	return cmd
}

func (e *env) openDB(cmd *cobra.Command) (*sql.DB, error) {
	cfg, _, err := e.load(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Driver != "sqlite" {
		return nil, fmt.Errorf("migrations apply to the sqlite driver, store.driver is %q", cfg.Store.Driver)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o700); err != nil {
		return nil, err
	}
	return sqlite.OpenDB(cfg.Store.Path)
}

func newMigrateStepCommand(e *env, use, short string, step func(*sql.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := e.openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := step(db); err != nil {
				return err
			}
			return printVersion(cmd, db)
		},
	}
}

func newMigrateVersionCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := e.openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
			return printVersion(cmd, db)
		},
	}
}

func printVersion(cmd *cobra.Command, db *sql.DB) error {
	v, dirty, err := sqlite.Version(db)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("schema is dirty at version %d", v)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
