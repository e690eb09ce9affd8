package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stake-plus/govcomms-feedback/src/actions"
	"github.com/stake-plus/govcomms-feedback/src/config"
	"github.com/stake-plus/govcomms-feedback/src/data"
	"github.com/stake-plus/govcomms-feedback/src/proposals"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const appName = "govfeedback"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Discord signatory bot for referendum feedback",
		Long: `govfeedback posts referendum feedback to a Discord forum and collects
approve/reject reactions from signatories until a threshold is reached.

Settings come from the MySQL settings table when MYSQL_DSN is set, with
environment variables as fallback.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(runCmd(), showCmd(), listCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})
	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and process feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <message-id>",
		Short: "Print one feedback record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, cfg *config.FeedbackConfig, store proposals.Store) error {
				rec, err := store.Get(ctx, args[0])
				if errors.Is(err, proposals.ErrNotFound) {
					return fmt.Errorf("no feedback recorded for message %s", args[0])
				}
				if err != nil {
					return err
				}
				codec := proposals.Codec{ApproveToken: cfg.ApprovalEmoji, RejectToken: cfg.RejectionEmoji}
				raw, err := codec.MarshalRecord(rec)
				if err != nil {
					return err
				}
				var out bytes.Buffer
				if err := json.Indent(&out, raw, "", "    "); err != nil {
					return err
				}
				out.WriteByte('\n')
				_, err = out.WriteTo(cmd.OutOrStdout())
				return err
			})
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List feedback records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, _ *config.FeedbackConfig, store proposals.Store) error {
				records, err := store.List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "MESSAGE\tREFERENDUM\tSTATUS\tAPPROVED\tREJECTED\tCREATED")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
						r.MessageID, r.Index, r.Status, r.Approved, r.Rejected, r.CreatedOn.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}
}

func loadConfig() (config.FeedbackConfig, func(), error) {
	db, err := data.OpenSettings()
	if err != nil {
		return config.FeedbackConfig{}, nil, err
	}
	return config.LoadFeedbackConfig(), func() { data.CloseDB(db) }, nil
}

func withStore(ctx context.Context, fn func(context.Context, *config.FeedbackConfig, proposals.Store) error) error {
	cfg, closeDB, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeDB()
	if err := cfg.ValidateStore(); err != nil {
		return err
	}
	store, err := actions.OpenStore(ctx, &cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, &cfg, store)
}

func run(parent context.Context) error {
	cfg, closeDB, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeDB()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	apiCfg := config.LoadAPIConfig()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := actions.OpenStore(ctx, &cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	manager, err := actions.StartAll(ctx, &cfg, apiCfg, store)
	if err != nil {
		return fmt.Errorf("actions start: %w", err)
	}
	log.Printf("%s %s running, threshold %d", appName, Version, cfg.Threshold)

	<-ctx.Done()
	log.Printf("%s: shutting down", appName)
	manager.Stop(context.Background())
	return nil
}
