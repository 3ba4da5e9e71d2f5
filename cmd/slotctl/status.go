package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the version currently published in the slot",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	version, err := current.reconciler.Refresh(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(version)
	}

	if version == nil {
		fmt.Fprintln(out, "slot is empty")
		return nil
	}

	fmt.Fprintf(out, "sha:  %s\nsize: %s\nurl:  %s\n", version.Token, media.FormatSize(int(version.Size)), version.ReadURL)

	return nil
}
