// Command provision is the operator CLI for tenant schemas. It runs the same
// bootstrap, registration and lookup paths as the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"armoree/backend/internal/app"
	"armoree/backend/internal/config"
	"armoree/backend/internal/logging"
	"armoree/backend/internal/tenancy"
	"armoree/backend/pkg/models"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliState struct {
	envFile string
	app     *app.App
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:           "provision",
		Short:         "Manage Armoree tenant schemas",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(state.envFile)
			if err != nil {
				return fmt.Errorf("configuration loading failed: %w", err)
			}
			logger := logging.NewLogger(cfg.Log.Level, cfg.Environment)

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			state.app = a
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if state.app != nil {
				state.app.Close()
				_ = state.app.Logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&state.envFile, "env", "", "Path to .env file")

	root.AddCommand(
		newEnsureTablesCmd(state),
		newRegisterCmd(state),
		newLookupCmd(state),
	)
	return root
}

func newEnsureTablesCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-tables",
		Short: "Create the shared tenant mapping table if it is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// app.New already ran the best-effort check; run it strictly here.
			if err := state.app.Store.EnsurePublicTables(cmd.Context()); err != nil {
				return fmt.Errorf("failed to ensure public tables: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "public tables ready")
			return nil
		},
	}
}

func newRegisterCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "register <tenantName> <userId>",
		Short: "Provision a tenant schema and link it to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := state.app.Registrar.RegisterTenant(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newLookupCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <userId>",
		Short: "Show the tenant schema registered for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return lookup(cmd.Context(), cmd.OutOrStdout(), state.app.Resolver, args[0])
		},
	}
}

type resolver interface {
	Resolve(ctx context.Context, session *tenancy.Session) tenancy.Resolution
}

func lookup(ctx context.Context, out io.Writer, r resolver, userID string) error {
	res := r.Resolve(ctx, &tenancy.Session{UserID: userID})
	if res.State == tenancy.Failed {
		return errors.Join(errors.New("tenant lookup failed"), res.Err)
	}
	return printJSON(out, models.TenantInfo{
		UserID:     userID,
		SchemaName: res.SchemaName,
		State:      res.State.String(),
	})
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
