package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-tenant-guard/audit"
	"github.com/jrsteele09/go-tenant-guard/internal/config"
	"github.com/jrsteele09/go-tenant-guard/internal/obs"
	"github.com/jrsteele09/go-tenant-guard/isolation"
	"github.com/jrsteele09/go-tenant-guard/rbac"
	"github.com/jrsteele09/go-tenant-guard/server"
	"github.com/jrsteele09/go-tenant-guard/store/postgres"
	"github.com/jrsteele09/go-tenant-guard/tenantctx"
	"github.com/jrsteele09/go-tenant-guard/tenants"
	tenantrepofakes "github.com/jrsteele09/go-tenant-guard/tenants/repofakes"
	"github.com/jrsteele09/go-tenant-guard/token"
	"github.com/jrsteele09/go-tenant-guard/token/refresh"
	"github.com/jrsteele09/go-tenant-guard/users"
	fakeuserrepo "github.com/jrsteele09/go-tenant-guard/users/repofake"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", c.GetAppName()).Logger()
	obs.Init()

	deps, sweeper, cleanup, err := buildDeps(c, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sweeper.Start()
	defer sweeper.Stop()

	srv := server.New(c, logger, deps)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("server stopped")
		}
	}()
	waitForStopSignal()
	return shutdown(srv)
}

func buildDeps(c config.Config, logger zerolog.Logger) (server.Deps, *refresh.Sweeper, func(), error) {
	sink := audit.NewLogSink(logger)
	cleanup := func() {}

	tenantRepo := tenants.Repo(tenantrepofakes.NewFakeTenantRepo())
	userRepo := users.UserRepo(fakeuserrepo.NewFakeUserRepo())
	membershipRepo := users.MembershipRepo(fakeuserrepo.NewFakeMembershipRepo())
	var refreshRepo refresh.Repo = refresh.NewInMemoryRepo()
	var roleStore rbac.Store = rbac.NewMemoryStore()

	if dbURL := c.GetDatabaseURL(); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			return server.Deps{}, nil, cleanup, fmt.Errorf("opening database: %w", err)
		}
		cleanup = func() { _ = db.Close() }
		refreshStore, err := postgres.NewRefreshStore(db)
		if err != nil {
			return server.Deps{}, nil, cleanup, err
		}
		rbacStore, err := postgres.NewRBACStore(db)
		if err != nil {
			return server.Deps{}, nil, cleanup, err
		}
		if err := refreshStore.EnsureSchema(); err != nil {
			return server.Deps{}, nil, cleanup, err
		}
		if err := rbacStore.EnsureSchema(); err != nil {
			return server.Deps{}, nil, cleanup, err
		}
		refreshRepo = refreshStore
		roleStore = rbacStore
	}

	if err := rbac.SeedSystemRoles(roleStore); err != nil {
		return server.Deps{}, nil, cleanup, err
	}
	roles, err := rbac.NewService(roleStore, rbac.WithAuditSink(sink), rbac.WithLogger(logger))
	if err != nil {
		return server.Deps{}, nil, cleanup, err
	}

	resolver := tenantctx.NewResolver(
		tenantctx.WithTenantRepo(tenantRepo),
		tenantctx.WithProductionMode(c.IsProduction()),
		tenantctx.WithHeaderNames(c.GetTenantHeader(), c.GetUserIDHeader(), c.GetUserEmailHeader()),
		tenantctx.WithReservedSubdomains(c.GetReservedSubdomains()...),
	)
	enforcer := isolation.New(
		isolation.WithTenantRepo(tenantRepo),
		isolation.WithAuditSink(sink),
		isolation.WithLogger(logger),
	)
	signer := token.NewHMACSigner(c.GetSigningSecret())
	engine := refresh.NewEngine(refreshRepo, signer,
		refresh.WithExpiry(c.GetRefreshTokenExpiry()),
		refresh.WithAuditSink(sink),
		refresh.WithLogger(logger),
	)
	sweeper, err := refresh.NewSweeper(refreshRepo, c.GetSweepSchedule(), logger)
	if err != nil {
		return server.Deps{}, nil, cleanup, err
	}

	return server.Deps{
		Resolver:       resolver,
		Enforcer:       enforcer,
		Roles:          roles,
		Engine:         engine,
		Sink:           sink,
		TenantRepo:     tenantRepo,
		UserRepo:       userRepo,
		MembershipRepo: membershipRepo,
	}, sweeper, cleanup, nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *server.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
