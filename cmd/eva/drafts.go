package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newDraftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Recommendation draft approval and retry management",
	}
	cmd.AddCommand(newApproveCmd(), newResetRetriesCmd(), newShowDraftCmd())
	return cmd
}

func parseDraftID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "invalid draft id %q\n", arg)
		os.Exit(exitUser)
	}
	return id
}

func newApproveCmd() *cobra.Command {
	var approver string

	cmd := &cobra.Command{
		Use:   "approve <draft-id>",
		Short: "Approve a draft for delivery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			id := parseDraftID(args[0])

			app := loadApp(ctx)
			defer app.store.Close()

			ok, err := app.store.ApproveDraft(ctx, id, approver)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("draft %d not found or already approved\n", id)
				os.Exit(exitUser)
			}
			fmt.Printf("draft %d approved by %s\n", id, approver)
			return nil
		},
	}
	cmd.Flags().StringVar(&approver, "by", "", "approver identity")
	cmd.MarkFlagRequired("by")
	return cmd
}

func newResetRetriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-retries <draft-id>",
		Short: "Clear delivery attempts on an undelivered draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			id := parseDraftID(args[0])

			app := loadApp(ctx)
			defer app.store.Close()

			ok, err := app.store.ResetRetries(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("draft %d not found or already delivered\n", id)
				os.Exit(exitUser)
			}
			fmt.Printf("draft %d retries reset\n", id)
			return nil
		},
	}
}

func newShowDraftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <draft-id>",
		Short: "Print one draft's state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			id := parseDraftID(args[0])

			app := loadApp(ctx)
			defer app.store.Close()

			d, err := app.store.GetDraft(ctx, id)
			if err != nil {
				return err
			}
			if d == nil {
				fmt.Printf("draft %d not found\n", id)
				os.Exit(exitUser)
			}
			fmt.Printf("id=%d brand=%s tag=%s band=%s confidence=%.4f\n",
				d.ID, d.Brand, d.Tag, d.Band, d.FinalConfidence)
			fmt.Printf("approved=%v attempts=%d\n", d.Approved, d.Attempts)
			if d.ApprovedBy != nil {
				fmt.Printf("approved_by=%s\n", *d.ApprovedBy)
			}
			if d.NotifiedAt != nil {
				fmt.Printf("notified_at=%s\n", d.NotifiedAt.Format(time.RFC3339))
			}
			if d.LastError != nil {
				fmt.Printf("last_error=%s\n", *d.LastError)
			}
			fmt.Printf("bundle=%s sha256=%s\n", d.BundlePath, d.BundleSHA256)
			fmt.Printf("markdown=%s\n", d.MarkdownPath)
			return nil
		},
	}
}
