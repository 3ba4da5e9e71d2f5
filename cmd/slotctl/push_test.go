package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/denismitr/imgslot/internal/manipulator"
	"github.com/denismitr/imgslot/internal/media"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPushFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "push"}
	cmd.Flags().Float64("quality", 0, "")
	cmd.Flags().String("preset", string(manipulator.Medium), "")
	cmd.Flags().Bool("lossless", false, "")
	require.NoError(t, cmd.Flags().Parse(args))

	return cmd
}

func TestPolicyFromFlags(t *testing.T) {
	tt := []struct {
		name   string
		args   []string
		policy manipulator.Policy
	}{
		{name: "defaults to medium", policy: manipulator.PresetPolicy(manipulator.Medium)},
		{name: "preset", args: []string{"--preset", "high"}, policy: manipulator.PresetPolicy(manipulator.High)},
		{name: "manual", args: []string{"--quality", "0.35"}, policy: manipulator.Manual(0.35)},
		{name: "lossless", args: []string{"--lossless"}, policy: manipulator.Lossless()},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			p, err := policyFromFlags(newPushFlags(t, tc.args...))
			require.NoError(t, err)
			assert.Equal(t, tc.policy, p)
		})
	}

	t.Run("out of range quality", func(t *testing.T) {
		_, err := policyFromFlags(newPushFlags(t, "--quality", "0.05"))
		assert.Error(t, err)
	})

	t.Run("quality that is not a number", func(t *testing.T) {
		_, err := policyFromFlags(newPushFlags(t, "--quality", "NaN"))
		assert.Error(t, err)
	})

	t.Run("unknown preset", func(t *testing.T) {
		_, err := policyFromFlags(newPushFlags(t, "--preset", "ultra"))
		assert.Error(t, err)
	})
}

func TestReadSourceFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("png is detected from content", func(t *testing.T) {
		buf := &bytes.Buffer{}
		require.NoError(t, png.Encode(buf, image.NewGray(image.Rect(0, 0, 4, 4))))

		path := filepath.Join(dir, "photo.bin")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

		src, err := readSourceFile(path)
		require.NoError(t, err)
		assert.Equal(t, "photo.bin", src.Name)
		assert.Equal(t, "image/png", src.Mime)
		assert.Equal(t, media.PNG, src.Disposition)
	})

	t.Run("text is rejected", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello there"), 0o600))

		_, err := readSourceFile(path)
		assert.True(t, errors.Is(err, media.ErrUnsupportedInput))
	})
}
