package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ruraldash/internal/app"
	"ruraldash/internal/auth"
	"ruraldash/internal/config"
	"ruraldash/internal/record"
)

// SetupCommands builds the dashctl command tree. Every command prints JSON
// on stdout; a backend that cannot be reached is reported, not failed.
func SetupCommands(cfg config.App, logger *zap.Logger) *cobra.Command {
	var offline bool

	open := func(ctx context.Context) (*app.App, error) {
		c := cfg
		c.OfflineMode = c.OfflineMode || offline
		return app.New(ctx, c, logger)
	}

	rootCmd := &cobra.Command{
		Use:           "dashctl",
		Short:         "Inspect and update the rural learning dashboard data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "use only the local mirror")

	readCmd := &cobra.Command{
		Use:   "read [endpoint]",
		Short: "Read a collection, falling back to the mirror",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd, a.Layer.Read(cmd.Context(), args[0]))
		},
	}

	writeCmd := &cobra.Command{
		Use:   "write [endpoint] [json]",
		Short: "Write one record, keeping a mirrored copy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec record.Record
			if err := json.Unmarshal([]byte(args[1]), &rec); err != nil || rec == nil {
				return fmt.Errorf("record must be a JSON object")
			}
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd, a.Layer.Write(cmd.Context(), args[0], rec))
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Probe the backend and show the mirror's last sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			online := a.Probe(cmd.Context())
			out := map[string]any{
				"mode":           "offline",
				"offline":        !online,
				"backend":        cfg.APIBaseURL,
				"mirror_backend": cfg.MirrorBackend,
			}
			if online {
				out["mode"] = "online"
			}
			if t, ok := a.Mirror.LastSync(cmd.Context()); ok {
				out["last_sync"] = t
			}
			return printJSON(cmd, out)
		},
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Reload every dashboard collection into the mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd, a.Dashboard.Refresh(cmd.Context()))
		},
	}

	var role string
	tokenCmd := &cobra.Command{
		Use:   "token [subject]",
		Short: "Issue an API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer := auth.NewSigner(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)
			pair, err := signer.Issue(args[0], role)
			if err != nil {
				return err
			}
			return printJSON(cmd, pair)
		},
	}
	tokenCmd.Flags().StringVar(&role, "role", auth.RoleOperator, "role claim")

	rootCmd.AddCommand(readCmd, writeCmd, statusCmd, refreshCmd, tokenCmd)
	return rootCmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
