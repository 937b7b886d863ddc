package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shourjoguha/alloy/internal/catalog"
	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/storage"
	"github.com/spf13/cobra"
)

func defaultCatalogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".alloy-plan"
	}
	return filepath.Join(home, ".alloy-plan")
}

func newImportCatalogCmd(newLogger func() *slog.Logger) *cobra.Command {
	var (
		catalogDir string
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "import-catalog [file.yaml...]",
		Short: "Normalize movement catalog files and store them",
		Long: "import-catalog reads YAML files of the form `movements: [...]`, canonicalizes names, patterns and equipment, and stores them " +
			"in the local SQLite catalog, or in the server database when --config is given. With no files the built-in catalog is imported.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			ctx := cmd.Context()

			if configPath != "" {
				return importToDatabase(ctx, configPath, args, log)
			}

			cat, err := catalog.OpenSQLite(catalogDir)
			if err != nil {
				return fmt.Errorf("opening catalog: %w", err)
			}
			defer cat.Close()
			provider := catalog.NewProvider(cat, log)

			if len(args) == 0 {
				res, err := provider.Ingest(ctx, bytes.NewReader(catalog.SeedYAML()))
				if err != nil {
					return err
				}
				printImport("built-in catalog", res)
				return nil
			}

			for _, path := range args {
				hash, err := catalog.HashFile(path)
				if err != nil {
					return fmt.Errorf("hashing %s: %w", path, err)
				}
				if !force {
					done, err := cat.IsImported(path, hash)
					if err != nil {
						return fmt.Errorf("checking import state: %w", err)
					}
					if done {
						fmt.Printf("%s %s\n", dimColor("skip"), path)
						continue
					}
				}
				res, err := ingestFile(ctx, provider, path)
				if err != nil {
					return err
				}
				if err := cat.MarkImported(path, hash); err != nil {
					return fmt.Errorf("recording import of %s: %w", path, err)
				}
				printImport(path, res)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&catalogDir, "catalog-dir", defaultCatalogDir(), "directory holding the local SQLite catalog")
	flags.StringVar(&configPath, "config", "", "server config file; imports into the server database instead")
	flags.BoolVar(&force, "force", false, "re-import files whose content has not changed")
	return cmd
}

func importToDatabase(ctx context.Context, configPath string, files []string, log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		return err
	}
	db, err := storage.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	provider := catalog.NewProvider(db, log)

	if len(files) == 0 {
		res, err := provider.Ingest(ctx, bytes.NewReader(catalog.SeedYAML()))
		if err != nil {
			return err
		}
		printImport("built-in catalog", res)
		return nil
	}
	for _, path := range files {
		res, err := ingestFile(ctx, provider, path)
		if err != nil {
			return err
		}
		printImport(path, res)
	}
	return nil
}

func ingestFile(ctx context.Context, provider *catalog.Provider, path string) (*catalog.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	res, err := provider.Ingest(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", path, err)
	}
	return res, nil
}

func printImport(source string, res *catalog.Result) {
	fmt.Printf("%s %s: %d received, %d stored, %d unchanged\n",
		successColor("imported"), source, res.Received, res.Inserted, res.Skipped)
	if res.Rejected > 0 {
		fmt.Printf("  %s %d rejected: %v\n", warnColor("warning:"), res.Rejected, res.RejectedNames)
	}
}
