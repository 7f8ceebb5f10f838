// Package server wires the NoteKeeper components together: storage,
// anti-forgery tokens, rate limiting, the JSON API and the gRPC health
// service. It also owns the background sweeps and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/config"
	"github.com/dmitrijs2005/notekeeper/internal/server/csrf"
	"github.com/dmitrijs2005/notekeeper/internal/server/kvstore"
	"github.com/dmitrijs2005/notekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/notekeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/notekeeper/internal/server/rest"
	"github.com/dmitrijs2005/notekeeper/internal/server/services"
	"github.com/dmitrijs2005/notekeeper/internal/server/sweep"
	"github.com/dmitrijs2005/notekeeper/internal/server/tracing"

	gs "github.com/dmitrijs2005/notekeeper/internal/server/grpc"
)

const serviceName = "notekeeper"

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	tokenStore  kvstore.Store
	tokens      *csrf.Registry
	limiter     *ratelimit.Limiter
	userService *services.UserService
	noteService *services.NoteService
	closers     []func(context.Context) error
}

// NewApp opens the database, applies migrations, optionally seeds demo data
// and builds the services. Logs go to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	logger := logging.New(w, c.LogLevel)
	app := &App{config: c, logger: logger}

	shutdownTracing, err := tracing.Init(ctx, serviceName, c.TracingEndpoint)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, shutdownTracing)

	dialect, err := dbx.ParseDialect(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	db, err := repomanager.Open(ctx, dialect, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, func(context.Context) error { return db.Close() })

	rm := repomanager.NewSQLRepositoryManager(dialect).WithLogger(logger)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("migrations: %w", err)
	}

	if c.SeedDemoData {
		if err := services.SeedDemoData(ctx, db, rm, auth.NewHasher(c.BcryptCost), logger); err != nil {
			_ = app.Close(ctx)
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	store, err := app.openTokenStore(ctx)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.tokenStore = store
	app.tokens = csrf.NewRegistry(store, c.CSRFTokenTTL, time.Now)
	app.limiter = ratelimit.New(kvstore.NewMemory(time.Now), rateRules(c), time.Now)

	app.userService = services.NewUserService(db, rm, app.tokens, c, logger)
	app.noteService = services.NewNoteService(db, rm, logger)

	return app, nil
}

func (app *App) openTokenStore(ctx context.Context) (kvstore.Store, error) {
	switch app.config.TokenStore {
	case "", "memory":
		return kvstore.NewMemory(time.Now), nil
	case "redis":
		r, err := kvstore.DialRedis(ctx, app.config.RedisAddr, app.config.RedisPassword, serviceName+":")
		if err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return r.Close() })
		return r, nil
	}
	return nil, fmt.Errorf("unknown token store %q", app.config.TokenStore)
}

func rateRules(c *config.Config) map[ratelimit.Class]ratelimit.Rule {
	return map[ratelimit.Class]ratelimit.Rule{
		ratelimit.ClassLogin:          {Max: c.LoginRateLimit.Max, Window: c.LoginRateLimit.Window},
		ratelimit.ClassSignup:         {Max: c.SignupRateLimit.Max, Window: c.SignupRateLimit.Window},
		ratelimit.ClassPasswordChange: {Max: c.PasswordChangeRateLimit.Max, Window: c.PasswordChangeRateLimit.Window},
	}
}

// Close releases everything NewApp opened, in reverse order.
func (app *App) Close(ctx context.Context) error {
	var first error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	app.closers = nil
	return first
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) restDeps() rest.Deps {
	return rest.Deps{
		Users:           app.userService,
		Notes:           app.noteService,
		Tokens:          app.tokens,
		Limiter:         app.limiter,
		Logger:          app.logger,
		AllowedOrigins:  app.config.CORSAllowedOrigins,
		ServerSideRoles: app.config.ServerSideRoles,
	}
}

// startSweeps purges expired tokens and ended rate-limit windows on a fixed
// interval.
func (app *App) startSweeps(ctx context.Context) []*sweep.Task {
	if app.config.SweepInterval <= 0 {
		return nil
	}
	run := func(kind string, fn func(context.Context) (int, error)) *sweep.Task {
		return sweep.Start(ctx, app.config.SweepInterval, func(ctx context.Context) {
			n, err := fn(ctx)
			if err != nil {
				app.logger.Warn(ctx, "sweep failed", "kind", kind, "error", err)
				return
			}
			if n > 0 {
				metrics.SweptEntriesTotal.WithLabelValues(kind).Add(float64(n))
				app.logger.Debug(ctx, "sweep done", "kind", kind, "removed", n)
			}
		})
	}
	return []*sweep.Task{
		run("tokens", app.tokens.Sweep),
		run("rate_limits", app.limiter.Sweep),
	}
}

// Run serves until a signal arrives or a server fails, then shuts
// everything down.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	tasks := app.startSweeps(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s := rest.NewHTTPServer(app.config.EndpointAddrHTTP, rest.NewRouter(app.restDeps()), app.logger)
		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger)
			if err := s.Run(ctx); err != nil {
				app.logger.Error(ctx, err.Error())
				cancelFunc()
			}
		}()
	}

	wg.Wait()

	for _, t := range tasks {
		t.Stop()
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		app.logger.Error(closeCtx, "shutdown", "error", err)
	}
	app.logger.Info(closeCtx, "App stopped")
}
