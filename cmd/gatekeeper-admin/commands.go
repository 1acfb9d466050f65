package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/target/gatekeeper/internal/bootstrap"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/migrate"
	"github.com/target/gatekeeper/internal/service"
	"github.com/urfave/cli/v2"
)

const defaultMigrationTimeout = 5 * time.Minute

var allowRemoteFlag = &cli.BoolFlag{
	Name:  "allow-remote",
	Usage: "allow running against a non-local database host (asks for confirmation)",
}

func migrateCommand(env *adminEnv) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Value: defaultMigrationTimeout,
				Usage: "maximum time allowed for migrations",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "list pending migrations without applying them",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			return env.withDatabase(ctx, func(ctx context.Context, db *sql.DB) error {
				if c.Bool("dry-run") {
					pending, err := migrate.Pending(ctx, db)
					if err != nil {
						return err
					}
					if len(pending) == 0 {
						return writeln(c.App.Writer, "schema is up to date")
					}
					for _, v := range pending {
						if err := writeln(c.App.Writer, "pending", v); err != nil {
							return err
						}
					}
					return nil
				}
				if err := bootstrap.RunMigrations(ctx, db, env.logger); err != nil {
					return err
				}
				return writeln(c.App.Writer, "migrations applied")
			})
		},
	}
}

func createUserCommand(env *adminEnv) *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "role", Value: string(domainauth.RoleUser), Usage: "user or admin"},
			&cli.BoolFlag{Name: "password-stdin", Usage: "read the password from the first line of stdin"},
			allowRemoteFlag,
		},
		Action: func(c *cli.Context) error {
			role, ok := domainauth.ParseRole(c.String("role"))
			if !ok {
				return fmt.Errorf("unknown role %q", c.String("role"))
			}
			in := bufio.NewReader(c.App.Reader)
			if err := env.guardRemoteHost(in, c.App.ErrWriter, c.Bool("allow-remote"), "create an account"); err != nil {
				return err
			}
			password, err := readNewPassword(in, c.App.ErrWriter, c.Bool("password-stdin"))
			if err != nil {
				return err
			}

			return env.withAccounts(c.Context, func(accounts *service.AccountService) error {
				rec, err := accounts.CreateUser(c.Context, c.String("username"), password, role)
				if err != nil {
					return err
				}
				return writef(c.App.Writer, "created %s (id %d, role %s)\n", rec.Username, rec.ID, rec.Role)
			})
		},
	}
}

func setRoleCommand(env *adminEnv) *cli.Command {
	return &cli.Command{
		Name:  "set-role",
		Usage: "change the role of an existing account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "role", Required: true, Usage: "none, user or admin"},
			allowRemoteFlag,
		},
		Action: func(c *cli.Context) error {
			role, ok := domainauth.ParseRole(c.String("role"))
			if !ok {
				return fmt.Errorf("unknown role %q", c.String("role"))
			}
			in := bufio.NewReader(c.App.Reader)
			if err := env.guardRemoteHost(in, c.App.ErrWriter, c.Bool("allow-remote"), "change an account role"); err != nil {
				return err
			}

			return env.withAccounts(c.Context, func(accounts *service.AccountService) error {
				rec, err := accounts.AssignRole(c.Context, c.String("username"), role)
				if err != nil {
					return err
				}
				return writef(c.App.Writer, "%s is now %s\n", rec.Username, rec.Role)
			})
		},
	}
}

// hashPasswordCommand prints an encoded hash for seeding rows by hand.
func hashPasswordCommand(env *adminEnv) *cli.Command {
	return &cli.Command{
		Name:  "hash-password",
		Usage: "print the argon2id encoding of a password",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "password-stdin", Usage: "read the password from the first line of stdin"},
		},
		Action: func(c *cli.Context) error {
			password, err := readNewPassword(bufio.NewReader(c.App.Reader), c.App.ErrWriter, c.Bool("password-stdin"))
			if err != nil {
				return err
			}
			if err := service.ValidatePassword(password); err != nil {
				return err
			}
			encoded, err := env.hasher().Hash(c.Context, password)
			if err != nil {
				return err
			}
			return writeln(c.App.Writer, encoded)
		},
	}
}
