package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/target/gatekeeper/config"
	"github.com/target/gatekeeper/internal/adapters/passwordhash"
	"github.com/target/gatekeeper/internal/bootstrap"
	"github.com/target/gatekeeper/internal/data"
	"github.com/target/gatekeeper/internal/ports"
	"github.com/target/gatekeeper/internal/service"
)

// userStoreFactory opens the user repository and returns its closer.
type userStoreFactory func(ctx context.Context, env *adminEnv) (ports.UserRepository, func() error, error)

type adminEnv struct {
	logger     *slog.Logger
	openUsers  userStoreFactory
	loadConfig func() (config.AppConfig, error)
	cfg        config.AppConfig
}

func (e *adminEnv) hasher() *passwordhash.Hasher {
	return passwordhash.New(passwordhash.Options{
		Params: passwordhash.Params{
			MemoryKiB:   e.cfg.Auth.Hash.MemoryKiB,
			Iterations:  e.cfg.Auth.Hash.Iterations,
			Parallelism: e.cfg.Auth.Hash.Parallelism,
		},
		Workers: 1,
	})
}

func (e *adminEnv) withAccounts(ctx context.Context, fn func(*service.AccountService) error) error {
	users, closeFn, err := e.openUsers(ctx, e)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil {
			e.logger.Warn("user store close failed", "error", cerr)
		}
	}()

	return fn(service.NewAccountService(service.AccountServiceOptions{
		Users:  users,
		Hasher: e.hasher(),
		Logger: e.logger,
	}))
}

func (e *adminEnv) withDatabase(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: e.cfg.Postgres,
		Logger:   e.logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			e.logger.Warn("db close failed", "error", cerr)
		}
	}()

	return fn(ctx, db)
}

func postgresUsers(ctx context.Context, env *adminEnv) (ports.UserRepository, func() error, error) {
	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: env.cfg.Postgres,
		Logger:   env.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	return data.NewUserRepo(db), db.Close, nil
}

// guardRemoteHost refuses to touch a non-local database unless allow is set and
// the operator types the host name back.
func (e *adminEnv) guardRemoteHost(in *bufio.Reader, w io.Writer, allow bool, action string) error {
	host := e.cfg.Postgres.Host
	if !isLikelyRemoteHost(host) {
		return nil
	}
	if !allow {
		return fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			host,
		)
	}
	return requireRemoteHostConfirmation(in, w, action, host)
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return false
	}
	if h == "localhost" || h == "127.0.0.1" || h == "::1" {
		return false
	}
	if strings.HasSuffix(h, ".local") {
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}
