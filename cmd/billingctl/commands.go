package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/bootstrap"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/config"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/database"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/dto"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operate the subscription billing engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrateCommand(),
		tickCommand(),
		requestsCommand(),
		watchCommand(),
	)
	return root
}

// connect loads configuration, opens the database and wires the services.
// The caller must Close the returned app.
func connect(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg := config.Load()
	if err := database.Connect(cfg); err != nil {
		return nil, err
	}
	app, err := bootstrap.New(cmd.Context(), cfg, database.DB)
	if err != nil {
		return nil, err
	}
	app.Dispatcher.Start(cmd.Context())
	return app, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the billing tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := database.Connect(cfg); err != nil {
				return err
			}
			if err := database.Migrate(database.DB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func tickCommand() *cobra.Command {
	var (
		tenantID string
		at       string
	)
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler pass for all tenants or a single tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				now = parsed.UTC()
			}

			app, err := connect(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if tenantID == "" {
				report, err := app.Scheduler.Tick(cmd.Context(), now)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			}

			id, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("--tenant: %w", err)
			}
			res, err := app.Scheduler.TickTenant(cmd.Context(), id, now)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.NewSubscriptionResponse(res.Record, now))
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tick only this tenant")
	cmd.Flags().StringVar(&at, "at", "", "evaluate at this RFC3339 instant instead of now")
	return cmd
}

func requestsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Inspect manual payment requests",
	}

	var (
		status   string
		tenantID string
		limit    int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List payment requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := services.RequestFilter{Status: lifecycle.RequestStatus(status), Limit: limit}
			if tenantID != "" {
				id, err := uuid.Parse(tenantID)
				if err != nil {
					return fmt.Errorf("--tenant: %w", err)
				}
				filter.TenantID = id
			}

			app, err := connect(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			requests, err := app.Ledger.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.PaymentRequestList{Requests: requests, Count: len(requests)})
		},
	}
	list.Flags().StringVar(&status, "status", "", "pending, pending_approval, approved or rejected")
	list.Flags().StringVar(&tenantID, "tenant", "", "only this tenant")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	cmd.AddCommand(list)
	return cmd
}

func watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream committed subscription changes (requires REDIS_URL)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := connect(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			if app.Feed == nil {
				return errors.New("watch needs REDIS_URL")
			}

			changes, err := app.Feed.Subscribe(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for change := range changes {
				if err := enc.Encode(change); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
