// Command incidentdesk runs the incident reporting API and its maintenance
// tasks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/app"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/config"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "incidentdesk",
	Short:         "Incident reporting backend",
	Version:       version.Get().String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file (default $"+config.ConfigFileEnv+")")

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedCategoriesCmd(),
		tokenCmd(),
		analyticsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(app.InitLogger(cfg.Log))
	return cfg, nil
}

func serveCmd() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live queries and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if migrateFirst {
				if err := migrateUp(cfg.Database.URL); err != nil {
					return err
				}
			}

			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("create app: %w", err)
			}

			runErr := application.Run(cmd.Context())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := application.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown failed", "error", err)
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}
