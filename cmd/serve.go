package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wagemap/internal/dataset"
	"github.com/sells-group/wagemap/internal/server"
)

var (
	servePort  int
	serveWatch time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve maps rendered to the viewer's width",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initMapEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		watcher := dataset.NewWatcher(env.Loader, env.Dataset, nil)
		if err := watcher.Prime(ctx); err != nil {
			zap.L().Warn("could not read source versions; reload only on request", zap.Error(err))
		}

		cache := server.NewRenderCache(cfg.Server.CacheEntries, time.Duration(cfg.Server.CacheTTLMins)*time.Minute)
		watcher.OnReload(func(ds *dataset.Dataset) { cache.Advance(ds.Generation()) })
		if serveWatch > 0 {
			go watcher.Run(ctx, serveWatch)
		}

		srv := server.New(watcher, env.Presets, cache, server.Options{
			Preset:         cfg.Map.Preset,
			Width:          cfg.Render.Width,
			Render:         renderOptions(cfg),
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("preset", cfg.Map.Preset),
			zap.Strings("frames", env.Dataset.Frames),
		)
		if err := srv.Serve(ctx, fmt.Sprintf(":%d", port)); err != nil {
			return eris.Wrap(err, "server listen")
		}
		zap.L().Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().DurationVar(&serveWatch, "watch", 0, "poll data sources for changes at this interval (0 disables)")
	rootCmd.AddCommand(serveCmd)
}
