package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/metalagman/blueprint/internal/autofill"
	"github.com/metalagman/blueprint/internal/config"
	"github.com/metalagman/blueprint/internal/db"
	"github.com/metalagman/blueprint/internal/framework"
	"github.com/metalagman/blueprint/internal/pipeline"
	"github.com/metalagman/blueprint/internal/web"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline as a JSON HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, serverApp(cfg))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serverApp(cfg config.Config, extra ...fx.Option) *fx.App {
	opts := []fx.Option{
		fx.Supply(cfg),
		fx.Provide(
			openDatabase,
			db.NewStore,
			framework.Default,
			autofill.NewEngine,
			newGenerator,
			pipeline.NewService,
			web.NewServer,
			newHTTPServer,
		),
		fx.Invoke(func(*http.Server) {}),
	}
	if !debug {
		opts = append(opts, fx.NopLogger)
	}
	return fx.New(append(opts, extra...)...)
}

func runServer(ctx context.Context, app *fx.App) error {
	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case sig := <-app.Done():
		log.Debug().Str("signal", sig.String()).Msg("stopping")
	}
	stopCtx, cancelStop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelStop()
	return app.Stop(stopCtx)
}

func openDatabase(lc fx.Lifecycle, cfg config.Config) (*sql.DB, error) {
	storeDB, err := db.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return storeDB.Close() },
	})
	return storeDB, nil
}

func newGenerator(cfg config.Config) pipeline.Generator {
	return newLazyGenerator(cfg.Generation)
}

func newHTTPServer(lc fx.Lifecycle, cfg config.Config, api *web.Server) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info().Str("addr", ln.Addr().String()).Msg("serving API")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("http server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
	return srv
}
