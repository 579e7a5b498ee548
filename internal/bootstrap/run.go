package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Purger removes expired sessions. *service.SessionService satisfies it.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RunConfig describes the long-running parts of the server process.
type RunConfig struct {
	Server        *http.Server
	Listener      net.Listener // optional; defaults to listening on Server.Addr
	Purger        Purger
	PurgeInterval time.Duration // zero disables purging
	Logger        *slog.Logger
}

// Run serves HTTP and purges expired sessions until ctx is cancelled or a component fails.
func Run(ctx context.Context, cfg RunConfig) error {
	if cfg.Server == nil {
		return errors.New("http server is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ln := cfg.Listener
		if ln == nil {
			var err error
			if ln, err = (&net.ListenConfig{}).Listen(gctx, "tcp", cfg.Server.Addr); err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
			}
		}
		logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := cfg.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(gctx, cfg.Server, logger)
	})

	if cfg.Purger != nil && cfg.PurgeInterval > 0 {
		g.Go(func() error {
			purgeLoop(gctx, cfg.Purger, cfg.PurgeInterval, logger)
			return nil
		})
	}

	return g.Wait()
}

func purgeLoop(ctx context.Context, p Purger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			switch {
			case err != nil && ctx.Err() == nil:
				logger.Warn("purge expired sessions failed", "error", err)
			case n > 0:
				logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}
