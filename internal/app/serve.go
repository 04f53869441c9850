package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetwatch/internal/scheduler"
	"budgetwatch/internal/server"
	"budgetwatch/internal/version"
)

// ServeOptions configure the HTTP API command.
type ServeOptions struct {
	Addr string
	// WithScheduler also runs the periodic evaluation loop in-process.
	WithScheduler bool
}

// Serve exposes the engine over HTTP until interrupted.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sched *scheduler.Scheduler
	if opts.WithScheduler {
		sched = scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			AlignToStart: a.Config.Scheduler.AlignToBucket,
			StartupDelay: a.Config.Scheduler.StartupDelay,
			RunOnStart:   true,
		}, a.Logger)
	}

	rt, err := a.open(ctx, sched, true)
	if err != nil {
		return err
	}
	defer rt.close()

	addr := opts.Addr
	if addr == "" {
		addr = a.Config.Server.Addr
	}
	srv := server.New(server.Config{
		Addr:           addr,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Version:        version.Version,
		Log:            a.Logger,
		Engine:         rt.svc,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if sched != nil {
		g.Go(func() error {
			err := rt.svc.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("server terminated with error")
		return err
	}
	a.Logger.Info().Msg("server stopped")
	return nil
}
