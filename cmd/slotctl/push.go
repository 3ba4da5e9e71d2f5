package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/denismitr/imgslot/internal/manipulator"
	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/uploader"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push <file>",
	Short: "Transcode a local image and publish it into the slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

func init() {
	pushCmd.Flags().Float64("quality", 0, "manual quality factor between 0.10 and 1.00")
	pushCmd.Flags().String("preset", string(manipulator.Medium), "quality preset: high, medium or low")
	pushCmd.Flags().Bool("lossless", false, "encode at full quality")
	pushCmd.Flags().Bool("dry-run", false, "transcode and report without publishing")
	pushCmd.Flags().Bool("wait", false, "wait until the store confirms the new version")
	pushCmd.MarkFlagsMutuallyExclusive("quality", "preset", "lossless")
}

func policyFromFlags(cmd *cobra.Command) (manipulator.Policy, error) {
	lossless, _ := cmd.Flags().GetBool("lossless")
	quality, _ := cmd.Flags().GetFloat64("quality")
	preset, _ := cmd.Flags().GetString("preset")

	var p manipulator.Policy
	switch {
	case lossless:
		p = manipulator.Lossless()
	case cmd.Flags().Changed("quality"):
		p = manipulator.Manual(quality)
	default:
		p = manipulator.PresetPolicy(manipulator.Tier(preset))
	}

	if err := p.Validate(); err != nil {
		return p, err
	}

	return p, nil
}

func runPush(cmd *cobra.Command, args []string) error {
	p, err := policyFromFlags(cmd)
	if err != nil {
		return err
	}

	src, err := readSourceFile(args[0])
	if err != nil {
		return err
	}

	result, err := manipulator.New(manipulator.DefaultConfig()).Transcode(src, p)
	if err != nil {
		return errors.Wrap(err, "Failed to process image")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %dx%d (%s) -> %dx%d jpeg, %s, estimated %s\n",
		src.Name,
		result.OriginalDimensions.Width, result.OriginalDimensions.Height, media.FormatSize(int(src.Size)),
		result.Dimensions.Width, result.Dimensions.Height, p.String(), media.FormatSize(result.EstimatedSize),
	)

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	receipt, err := current.coordinator.Upload(ctx, uploader.Transcoded{Result: result})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "uploaded %s (%s), sha %s\n", receipt.Slot.String(), media.FormatSize(receipt.Size), receipt.Token)

	if wait, _ := cmd.Flags().GetBool("wait"); wait {
		return waitForConfirmation(cmd)
	}

	return nil
}

func waitForConfirmation(cmd *cobra.Command) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	snapshot, err := current.reconciler.WaitIdle(ctx)
	if err != nil {
		return errors.Wrap(err, "gave up waiting for confirmation")
	}

	if snapshot.LastError != "" {
		return errors.Errorf("could not confirm the new version: %s", snapshot.LastError)
	}

	if snapshot.Current != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "confirmed sha %s at %s\n", snapshot.Current.Token, snapshot.Current.ReadURL)
	}

	return nil
}

func readSourceFile(path string) (*media.SourceImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	mime := http.DetectContentType(content)
	if err := media.ValidateCandidate(mime, info.Size()); err != nil {
		return nil, err
	}

	return media.NewSourceImage(filepath.Base(path), mime, content), nil
}
