package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/homar/homar/internal/adminclient"
	"github.com/homar/homar/internal/config"
)

func newScheduledCommand(logger *slog.Logger) *cobra.Command {
	_ = logger
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "List pending scheduled messages on a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := adminclient.New(config.FromEnv())
			ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
			defer cancel()

			response, err := client.ListScheduled(ctx)
			if err != nil {
				return err
			}
			if response.Count == 0 {
				cmd.Println("No scheduled messages pending.")
				return nil
			}
			for _, entry := range response.Items {
				fireAt := time.Unix(entry.FireAtUnix, 0).Local().Format("2006-01-02 15:04:05 MST")
				cmd.Printf("%s  %s  %s\n", entry.ID, fireAt, entry.Message)
				if entry.Cron != "" {
					cmd.Printf("%s  repeats: %s\n", strings.Repeat(" ", len(entry.ID)), entry.Cron)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 30, "request timeout in seconds")

	cmd.AddCommand(newScheduledCancelCommand())
	return cmd
}

func newScheduledCancelCommand() *cobra.Command {
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending scheduled message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := adminclient.New(config.FromEnv())
			ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
			defer cancel()

			if err := client.CancelScheduled(ctx, args[0]); err != nil {
				return err
			}
			cmd.Printf("Cancelled %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 30, "request timeout in seconds")
	return cmd
}

func newApprovalsCommand(logger *slog.Logger) *cobra.Command {
	_ = logger
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "List pending approval requests on a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := adminclient.New(config.FromEnv())
			ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
			defer cancel()

			items, err := client.ListApprovals(ctx)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				cmd.Println("No approvals pending.")
				return nil
			}
			for _, item := range items {
				cmd.Printf("%v  target=%v\n", item["id"], item["target"])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 30, "request timeout in seconds")

	cmd.AddCommand(newApprovalsResolveCommand("approve", "approved"))
	cmd.AddCommand(newApprovalsResolveCommand("reject", "rejected"))
	return cmd
}

func newApprovalsResolveCommand(use, decision string) *cobra.Command {
	var (
		actor      string
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <id>", use),
		Short: fmt.Sprintf("Mark a pending approval request as %s", decision),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := adminclient.New(config.FromEnv())
			ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
			defer cancel()

			if err := client.ResolveApproval(ctx, args[0], decision, actor); err != nil {
				return err
			}
			cmd.Printf("%s: %s\n", strings.ToUpper(decision[:1])+decision[1:], args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "who is making the decision")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 30, "request timeout in seconds")
	return cmd
}
