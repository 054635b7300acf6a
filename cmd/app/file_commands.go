package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/hsmvault/cmd/app/commands"
	"github.com/allisson/hsmvault/internal/app"
	"github.com/allisson/hsmvault/internal/config"
)

func getFileCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "encrypt-file",
			Usage: "Encrypt a stored artifact into an envelope and a wrapped DEK",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "name",
					Aliases: []string{"n"},
					Usage:   "Artifact name in the store",
				},
				&cli.StringFlag{
					Name:    "source",
					Aliases: []string{"s"},
					Usage:   "Local file to upload before encrypting",
				},
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

				fileUseCase, err := container.FileUseCase()
				if err != nil {
					return err
				}

				return commands.RunEncryptFile(
					ctx,
					fileUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("name"),
					cmd.String("source"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "decrypt-file",
			Usage: "Restore the plaintext of a stored envelope",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "name",
					Aliases:  []string{"n"},
					Required: true,
					Usage:    "Envelope name, usually ending in .encrypted",
				},
				&cli.StringFlag{
					Name:    "dek",
					Aliases: []string{"d"},
					Usage:   "Wrapped DEK name; defaults to the sidecar written by encrypt-file",
				},
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

				fileUseCase, err := container.FileUseCase()
				if err != nil {
					return err
				}

				return commands.RunDecryptFile(
					ctx,
					fileUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("name"),
					cmd.String("dek"),
					cmd.String("format"),
				)
			},
		},
	}
}
