package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/hsmvault/cmd/app/commands"
	"github.com/allisson/hsmvault/internal/app"
	"github.com/allisson/hsmvault/internal/config"
)

func getProviderCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "provider-status",
			Usage: "Activate a KEK provider and report whether it is healthy",
			Flags: []cli.Flag{
				providerFlag(),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				if _, err := container.ActivateProvider(ctx, cmd.String("provider")); err != nil {
					return err
				}

				registry, err := container.ProviderRegistry()
				if err != nil {
					return err
				}

				return commands.RunProviderStatus(
					ctx,
					registry,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "create-simulated-kek",
			Usage: "Create the key file used by the simulated KEK provider",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "path",
					Usage: "KEK file path; defaults to SIMULATED_KEK_PATH",
				},
				&cli.BoolFlag{
					Name:  "force",
					Value: false,
					Usage: "Replace an existing KEK file",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				path := cmd.String("path")
				if path == "" {
					path = config.Load().SimulatedKEKPath
				}

				return commands.RunCreateSimulatedKek(
					commands.DefaultIO().Writer,
					path,
					cmd.Bool("force"),
					cmd.String("format"),
				)
			},
		},
	}
}
