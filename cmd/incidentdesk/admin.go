package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/analytics"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/app"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/catalog"
	catalogpostgres "github.com/yasmineadnan/dev-mobile-react-native/internal/catalog/postgres"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/config"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/identity/jwt"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
	incidentspostgres "github.com/yasmineadnan/dev-mobile-react-native/internal/incidents/postgres"
)

// cliSession acts on behalf of the operator running the command.
var cliSession = domain.Session{UserID: "cli", Name: "CLI", Role: domain.RoleAdmin}

func withDB(ctx context.Context, fn func(cfg *config.Config, db *pgxpool.Pool) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()

	db, err := app.Connect(connectCtx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(cfg, db)
}

func seedCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-categories",
		Short: "Create the default categories when the catalog is empty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(cfg *config.Config, db *pgxpool.Pool) error {
				policy, err := access.NewPolicy()
				if err != nil {
					return err
				}
				svc := catalog.NewService(catalogpostgres.NewRepository(db), policy, cfg.Timeouts.Operation)

				created, err := svc.Seed(cmd.Context())
				if err != nil {
					return fmt.Errorf("seed categories: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d categories\n", created)
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for a subject, for local development",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			auth := jwt.NewAuthenticator(jwt.Config{
				SecretKey:     cfg.JWT.SecretKey,
				Issuer:        cfg.JWT.Issuer,
				TokenDuration: cfg.JWT.TokenDuration,
			})
			token, err := auth.IssueToken(args[0], name, email)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	return cmd
}

func analyticsCmd() *cobra.Command {
	var (
		rangeFlag string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the analytics report for a window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(cfg *config.Config, db *pgxpool.Pool) error {
				policy, err := access.NewPolicy()
				if err != nil {
					return err
				}
				incidentsService := incidents.NewService(incidentspostgres.NewRepository(db), policy, nil, incidents.Config{
					Timeout:     cfg.Timeouts.Operation,
					RecentLimit: cfg.Incidents.RecentLimit,
				})
				svc := analytics.NewService(incidentsService, policy)

				report, err := svc.Report(cmd.Context(), cliSession, analytics.Range(rangeFlag))
				if err != nil {
					return err
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				renderReport(report)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rangeFlag, "range", string(analytics.Range7Days), "window: 7d, 30d, month or year")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func renderReport(report *analytics.Report) {
	summary := table.NewWriter()
	summary.SetOutputMirror(os.Stdout)
	summary.SetTitle(fmt.Sprintf("Incidents %s to %s", report.From.Format("2006-01-02"), report.To.Format("2006-01-02")))
	summary.AppendRows([]table.Row{
		{"Total", report.Total},
		{"Resolved", report.Resolved},
		{"Avg resolution", report.AvgResolution},
		{"Trend (oldest first)", joinInts(report.Trend)},
	})
	summary.Render()

	types := table.NewWriter()
	types.SetOutputMirror(os.Stdout)
	types.AppendHeader(table.Row{"Category", "Count", "Share"})
	for _, it := range report.IssueTypes {
		types.AppendRow(table.Row{it.Category, it.Count, fmt.Sprintf("%d%%", it.Percentage)})
	}
	types.Render()

	responders := table.NewWriter()
	responders.SetOutputMirror(os.Stdout)
	responders.AppendHeader(table.Row{"Responder", "Tickets", "Resolved", "Efficiency", "Rating"})
	for _, rs := range report.TopResponders {
		responders.AppendRow(table.Row{rs.Name, rs.Tickets, rs.Resolved, fmt.Sprintf("%d%%", rs.Efficiency), rs.Rating})
	}
	responders.Render()
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}
