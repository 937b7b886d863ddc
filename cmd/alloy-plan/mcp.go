package main

import (
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/shourjoguha/alloy/internal/config"
	alloymcp "github.com/shourjoguha/alloy/internal/mcp"
	"github.com/shourjoguha/alloy/internal/storage"
	"github.com/spf13/cobra"
)

func newMCPCmd(newLogger func() *slog.Logger) *cobra.Command {
	var (
		serverURL  string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP over stdio",
		Long:  "mcp exposes program, microcycle and session tools over stdio, backed by a remote Alloy server (--url) or the server database (--config).",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			var ds alloymcp.DataSource
			switch {
			case serverURL != "":
				ds = alloymcp.NewHTTPClient(serverURL)
				log.Info("mcp using remote server", "url", serverURL)
			case configPath != "":
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				db, err := storage.New(cmd.Context(), cfg.Database.DSN())
				if err != nil {
					return err
				}
				defer db.Close()
				ds = db
			default:
				return errors.New("one of --url or --config is required")
			}

			return server.ServeStdio(alloymcp.New(ds, version, log))
		},
	}
	cmd.Flags().StringVar(&serverURL, "url", "", "Alloy server base URL")
	cmd.Flags().StringVar(&configPath, "config", "", "server config file for direct database access")
	return cmd
}
