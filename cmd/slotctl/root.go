package main

import (
	"time"

	"github.com/denismitr/imgslot/cmd/initialize"
	"github.com/denismitr/imgslot/internal/reconciler"
	"github.com/denismitr/imgslot/internal/registry"
	"github.com/denismitr/imgslot/internal/registry/memregistry"
	"github.com/denismitr/imgslot/internal/settings"
	"github.com/denismitr/imgslot/internal/storage"
	"github.com/denismitr/imgslot/internal/uploader"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ErrRecentNotPersistent is returned by the recent commands when no MongoDB is
// configured, a registry held by a single CLI run would always be empty.
var ErrRecentNotPersistent = errors.New("recent uploads need MONGODB_URL to be set")

var (
	envFile string
	verbose bool
)

// app is the wiring shared by all commands, built once before any of them runs.
type app struct {
	log         *logrus.Logger
	provider    settings.Provider
	opener      storage.Opener
	recent      registry.Recent
	persistent  bool
	reconciler  *reconciler.Reconciler
	coordinator *uploader.Coordinator
	close       func()
	closed      bool
}

// persistentRecent hands out the registry only when it outlives the process.
func (a *app) persistentRecent() (registry.Recent, error) {
	if !a.persistent || a.recent == nil {
		return nil, ErrRecentNotPersistent
	}

	return a.recent, nil
}

// closeApp runs after every command, including the ones that failed.
func closeApp() {
	if current == nil || current.closed {
		return
	}

	current.closed = true
	if current.close != nil {
		current.close()
	}
}

var current *app

var rootCmd = &cobra.Command{
	Use:   "slotctl",
	Short: "Replace the published slot image from the command line",
	Long: `slotctl transcodes a local image and publishes it into the configured slot.

Example usage:
  slotctl push photo.png                 # medium preset, returns right after the write
  slotctl push photo.png --preset high   # use the high preset
  slotctl push photo.png --quality 0.35 --wait
  slotctl status                         # show the published version
  slotctl recent list`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		current = newApp()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(pushCmd, statusCmd, recentCmd)

	cobra.OnFinalize(closeApp)
}

func newApp() *app {
	if envFile != "" {
		initialize.DotEnv(envFile)
	} else {
		initialize.DotEnv()
	}

	log := initialize.Logger()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	var (
		recent        registry.Recent
		closeRegistry = func() {}
		persistent    = initialize.HasMongo()
	)

	if persistent {
		recent, closeRegistry = initialize.MongoRegistry(10*time.Second, false, initialize.RecentLimit())
	} else {
		// pushes still go through the coordinator, their history is dropped on exit
		recent = memregistry.New(initialize.RecentLimit())
	}

	provider := settings.NewEnvProvider()
	opener := initialize.StorageOpener()

	rec := reconciler.New(reconciler.Config{}, reconciler.NewStoreFetcher(provider, opener), log)

	return &app{
		log:         log,
		provider:    provider,
		opener:      opener,
		recent:      recent,
		persistent:  persistent,
		reconciler:  rec,
		coordinator: uploader.New(uploader.Config{}, provider, opener, rec, recent, log),
		close: func() {
			rec.Stop()
			closeRegistry()
		},
	}
}
