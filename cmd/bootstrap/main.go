// Command bootstrap creates the first System Admin account.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/audit"
	"github.com/spec-kit/helpdesk-dispatch/internal/auth"
	"github.com/spec-kit/helpdesk-dispatch/internal/clock"
	"github.com/spec-kit/helpdesk-dispatch/internal/config"
	"github.com/spec-kit/helpdesk-dispatch/internal/observability"
	"github.com/spec-kit/helpdesk-dispatch/internal/persistence"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	"github.com/spec-kit/helpdesk-dispatch/internal/service"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var de *apperrors.DomainError
		if errors.As(err, &de) && de.HTTPStatus < 500 {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	var input service.BootstrapInput

	flagSet := pflag.NewFlagSet("bootstrap", pflag.ContinueOnError)
	flagSet.StringVar(&input.Token, "token", "", "setup token; must match BOOTSTRAP_TOKEN")
	flagSet.StringVar(&input.Email, "email", "", "email of the System Admin")
	flagSet.StringVar(&input.Name, "name", "", "display name")
	flagSet.StringVar(&input.Password, "password", "", "initial password (default: $BOOTSTRAP_PASSWORD)")
	flagSet.StringVar(&input.CompanyID, "company", "", "company the administrator belongs to")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintln(os.Stderr, "usage: bootstrap --token T --email E --name N --company C [--password P]")
		flagSet.PrintDefaults()
		return nil
	}
	if input.Password == "" {
		input.Password = os.Getenv("BOOTSTRAP_PASSWORD")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return err
		}
	}

	clk := clock.Real()
	recorder := audit.NewRecorder(repository.NewAuditRepository(pg.PoolHandle()), logger, clk)
	defer recorder.Wait()

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:       repository.NewUserRepository(pg.PoolHandle()),
		Tokens:         auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		Auditor:        recorder,
		BcryptCost:     cfg.Auth.BcryptCost,
		BootstrapToken: cfg.Bootstrap.Token,
		Clock:          clk,
		Logger:         logger,
	})

	user, err := authService.Bootstrap(ctx, input)
	if err != nil {
		return err
	}
	logger.Info("system admin created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return nil
}
