package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/samanhappy/selectly/pkg/config"
	"github.com/samanhappy/selectly/pkg/logging"
	"github.com/samanhappy/selectly/pkg/paths"
	"github.com/samanhappy/selectly/pkg/server"
)

func runServeCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", "", "listen address (default from settings)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := initDependencies()
	if err != nil {
		return err
	}
	defer deps.Close()

	bind := deps.settings.Listen
	if *listen != "" {
		bind = *listen
	}

	srv := server.NewServer(server.Config{
		BindAddress: bind,
		Version:     version,
	}, deps.configs, deps.db, deps.router, deps.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })

	// Without a token the cloud default model would 401 on every request;
	// poll the session endpoint until sign-in completes, then hand the
	// token to the already-built cloud client.
	if deps.tokens.Token() == "" {
		g.Go(func() error {
			if err := deps.tokens.Poll(ctx); err != nil {
				// Shutdown; nothing to refresh.
				return nil
			}
			deps.router.RefreshCloudToken()
			return nil
		})
	}

	// Dropping a backup file into the data dir imports it live.
	importPath := filepath.Join(paths.DataDir(), "import.json")
	watcher, err := config.NewWatcher(deps.configs, importPath, deps.logger)
	if err != nil {
		deps.logger.Warn(logging.CategoryConfig, "watcher_disabled", err.Error(),
			map[string]any{"path": importPath})
	} else {
		g.Go(func() error {
			watcher.Run(ctx)
			return watcher.Close()
		})
	}

	deps.logger.Info(logging.CategoryServer, "started", "daemon running",
		map[string]any{"listen": bind, "version": version})

	return g.Wait()
}
