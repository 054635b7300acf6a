package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/hsmvault/cmd/app/commands"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP API server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "hsm-proxy",
			Usage: "Serve a locally attached KEK provider to remote clients over mutual TLS",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "provider",
					Aliases: []string{"p"},
					Usage:   "Provider type, alias or profile to expose; defaults to HSM_PROXY_PROVIDER_TYPE",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunHSMProxy(ctx, version, cmd.String("provider"))
			},
		},
	}
}
