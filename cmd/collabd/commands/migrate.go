package commands

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/collabgraph/internal/config"
	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
	"github.com/sumatoshi-tech/collabgraph/internal/store"
	"github.com/sumatoshi-tech/collabgraph/pkg/persist"
)

const migrationsDir = "migrations"

// NewMigrateCommand applies or inspects the snapshot store's schema
// (the project/projectVersion/operation/graphSnapshot tables)
// through pressly/goose, and offers a dump/restore pair for a single
// project's snapshot as a standalone JSON file — useful for inspecting
// or seeding state around a migration without a full pg_dump.
func NewMigrateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or inspect the snapshot store's database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to collabd.yaml")

	cmd.AddCommand(migrateUpCommand(&configPath))
	cmd.AddCommand(migrateDownCommand(&configPath))
	cmd.AddCommand(migrateStatusCommand(&configPath))
	cmd.AddCommand(migrateDumpSnapshotCommand(&configPath))
	cmd.AddCommand(migrateRestoreSnapshotCommand(&configPath))

	return cmd
}

func loadMigrationConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("migrate: load config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("migrate: postgres.dsn is required")
	}
	return cfg, nil
}

func openMigrationDB(configPath string) (*sql.DB, *config.Config, error) {
	cfg, err := loadMigrationConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("pgx", cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("migrate: open db: %w", err)
	}

	goose.SetBaseFS(store.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: set dialect: %w", err)
	}

	return db, cfg, nil
}

func migrateUpCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:           "up",
		Short:         "Apply all pending migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			db, _, err := openMigrationDB(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			return goose.UpContext(cobraCmd.Context(), db, migrationsDir)
		},
	}
}

func migrateDownCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:           "down",
		Short:         "Roll back the most recently applied migration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			db, _, err := openMigrationDB(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			return goose.DownContext(cobraCmd.Context(), db, migrationsDir)
		},
	}
}

func migrateStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show applied and pending migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			db, _, err := openMigrationDB(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			return goose.StatusContext(cobraCmd.Context(), db, migrationsDir)
		},
	}
}

// migrateDumpSnapshotCommand writes projectID's current snapshot to
// <dir>/snapshot-<projectID>.json through pkg/persist. Meant for
// capturing a known-good state immediately before an "up"/"down" run.
func migrateDumpSnapshotCommand(configPath *string) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:           "dump-snapshot <project-id>",
		Short:         "Dump a project's current snapshot to a JSON file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			projectID := args[0]

			cfg, err := loadMigrationConfig(*configPath)
			if err != nil {
				return err
			}

			st, err := store.Open(cobraCmd.Context(), store.PoolConfig{DSN: cfg.Postgres.DSN})
			if err != nil {
				return fmt.Errorf("migrate: open store: %w", err)
			}
			defer st.Close()

			snapshot, version, err := st.GetProjectSnapshot(cobraCmd.Context(), projectID)
			if err != nil {
				return fmt.Errorf("migrate: load snapshot: %w", err)
			}

			dump := snapshotDump{Snapshot: snapshot, Version: version}
			p := persist.NewPersister[snapshotDump](snapshotBasename(projectID), persist.NewJSONCodec())
			if err := p.Save(dir, func() *snapshotDump { return &dump }); err != nil {
				return fmt.Errorf("migrate: save snapshot dump: %w", err)
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "dumped project %s (version %d) to %s\n", projectID, version, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to write the snapshot dump into")

	return cmd
}

// migrateRestoreSnapshotCommand reloads a dump written by dump-snapshot
// and writes it back as the current snapshot, bypassing the operation
// log — intended for restoring a known-good state, not for replaying
// history.
func migrateRestoreSnapshotCommand(configPath *string) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:           "restore-snapshot <project-id>",
		Short:         "Restore a project's snapshot from a dump-snapshot file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			projectID := args[0]

			cfg, err := loadMigrationConfig(*configPath)
			if err != nil {
				return err
			}

			st, err := store.Open(cobraCmd.Context(), store.PoolConfig{DSN: cfg.Postgres.DSN})
			if err != nil {
				return fmt.Errorf("migrate: open store: %w", err)
			}
			defer st.Close()

			var dump snapshotDump
			p := persist.NewPersister[snapshotDump](snapshotBasename(projectID), persist.NewJSONCodec())
			if err := p.Load(dir, func(d *snapshotDump) { dump = *d }); err != nil {
				return fmt.Errorf("migrate: load snapshot dump: %w", err)
			}

			if err := st.SaveChangesInTransaction(cobraCmd.Context(), projectID, dump.Snapshot, nil, dump.Version); err != nil {
				return fmt.Errorf("migrate: restore snapshot: %w", err)
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "restored project %s to version %d\n", projectID, dump.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to read the snapshot dump from")

	return cmd
}

type snapshotDump struct {
	Snapshot graphmodel.Snapshot `json:"snapshot"`
	Version  int                 `json:"version"`
}

func snapshotBasename(projectID string) string {
	return "snapshot-" + projectID
}
