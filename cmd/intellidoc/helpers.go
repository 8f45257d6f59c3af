package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Neroli1108/intellidoc-reader/internal/cli"
	"github.com/Neroli1108/intellidoc-reader/internal/config"
	"github.com/Neroli1108/intellidoc-reader/internal/storage"
)

// initStorage opens the annotation database and applies pending
// migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// documentNamespace resolves the --doc flag into the document's stable
// namespace key.
func documentNamespace(docPath string) (string, error) {
	if docPath == "" {
		return "", fmt.Errorf("--doc is required: the document whose annotations to operate on")
	}

	namespace, err := storage.DeriveNamespace(config.ExpandPath(docPath))
	if err != nil {
		return "", fmt.Errorf("failed to derive document namespace: %w", err)
	}
	return namespace, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Println(cli.FormatSuccess("database is up to date"))
			return nil
		},
	}
}
