package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/denismitr/goenv"
	"github.com/denismitr/imgslot/cmd/initialize"
	"github.com/denismitr/imgslot/internal/backoffice"
	"github.com/denismitr/imgslot/internal/manipulator"
	"github.com/denismitr/imgslot/internal/reconciler"
	"github.com/denismitr/imgslot/internal/settings"
	"github.com/denismitr/imgslot/internal/uploader"
	"github.com/labstack/echo/v4"
)

var (
	migrate = flag.Bool("migrate", false, "Run the migrations?")
)

func main() {
	flag.Parse()

	initialize.DotEnv()
	log := initialize.Logger()

	recent, closeRegistry := initialize.RecentRegistry(10*time.Second, *migrate, log)
	defer closeRegistry()

	provider := settings.NewEnvProvider()
	opener := initialize.StorageOpener()

	rec := reconciler.New(reconciler.Config{}, reconciler.NewStoreFetcher(provider, opener), log)
	defer rec.Stop()

	coordinator := uploader.New(uploader.Config{}, provider, opener, rec, recent, log)

	images := backoffice.NewImageService(
		manipulator.New(manipulator.DefaultConfig()),
		coordinator,
		rec,
		recent,
		provider,
		initialize.PublicHost(),
		log,
	)

	server, err := backoffice.NewServer(echo.New(), backoffice.Config{
		Port:     ":" + goenv.MustString("BACKOFFICE_PORT"),
		User:     goenv.MustString("BACKOFFICE_USER"),
		Password: goenv.MustString("BACKOFFICE_PASSWORD"),
	}, images, log)
	if err != nil {
		log.Fatal(err)
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGTERM, syscall.SIGINT)

	if err := server.Run(stopCh, 10*time.Second); err != nil {
		log.Fatal(err)
	}
}
