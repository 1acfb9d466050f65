package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/target/gatekeeper/internal/bootstrap"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := bootstrap.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := newApp(&adminEnv{
		logger:     logger,
		openUsers:  postgresUsers,
		loadConfig: bootstrap.LoadConfig,
	})
	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal failure to shell scripts
	}
}

func newApp(env *adminEnv) *cli.App {
	if env.logger == nil {
		env.logger = slog.Default()
	}
	return &cli.App{
		Name:  "gatekeeper-admin",
		Usage: "operator tasks for the gatekeeper user store",
		Before: func(*cli.Context) error {
			// The signing key is not needed here, so the config is sanitized but not validated.
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			env.cfg = cfg
			return nil
		},
		Commands: []*cli.Command{
			migrateCommand(env),
			createUserCommand(env),
			setRoleCommand(env),
			hashPasswordCommand(env),
		},
	}
}
