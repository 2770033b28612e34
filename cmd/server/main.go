package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/famkit/location-sharing-backend/cmd/flags"
	"github.com/famkit/location-sharing-backend/httpserver"
	"github.com/famkit/location-sharing-backend/registry"
	"github.com/famkit/location-sharing-backend/storage"
	"github.com/urfave/cli/v2"
)

var serverFlags []cli.Flag = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.StorageBackendFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "location-server",
		Usage: "Serve the family location sharing API",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String(flags.ListenAddrFlag.Name)
			backendURIs := cCtx.StringSlice(flags.StorageBackendFlag.Name)

			logger := flags.SetupLogger(cCtx)

			storageFactory := storage.NewDocumentBackendFactory(logger)
			backend, err := storageFactory.CreateMultiBackend(backendURIs)
			if err != nil {
				logger.Error("Failed to create storage backends", "err", err, "uris", backendURIs)
				return err
			}

			familyRegistry := registry.NewStoreRegistry(backend, logger)
			handler := httpserver.NewHandler(familyRegistry, logger)

			cfg := flags.ConfigureServer(cCtx, logger, listenAddr)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server", "listenAddr", listenAddr, "storage", backend.LocationURI())
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
