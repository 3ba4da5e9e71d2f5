package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/uploader"
	"github.com/spf13/cobra"
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Manage recent uploads",
}

var recentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent uploads, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		recent, err := current.persistentRecent()
		if err != nil {
			return err
		}

		list, err := recent.List(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSIZE\tCREATED")
		for _, r := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, media.FormatSize(r.Size), r.CreatedAt.Format(time.RFC3339))
		}

		return w.Flush()
	},
}

var recentClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all recent uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		recent, err := current.persistentRecent()
		if err != nil {
			return err
		}

		if err := recent.Clear(ctx); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Recent images cleared")
		return nil
	},
}

var recentReuseCmd = &cobra.Command{
	Use:   "reuse <id>",
	Short: "Publish a recent upload into the slot again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		recent, err := current.persistentRecent()
		if err != nil {
			return err
		}

		r, err := recent.Get(ctx, media.ID(args[0]))
		if err != nil {
			return err
		}

		receipt, err := current.coordinator.Upload(ctx, uploader.FromRecent(r))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "republished %s (%s), sha %s\n", receipt.Slot.String(), media.FormatSize(receipt.Size), receipt.Token)

		if wait, _ := cmd.Flags().GetBool("wait"); wait {
			return waitForConfirmation(cmd)
		}

		return nil
	},
}

func init() {
	recentReuseCmd.Flags().Bool("wait", false, "wait until the store confirms the new version")
	recentCmd.AddCommand(recentListCmd, recentClearCmd, recentReuseCmd)
}
