package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

const (
	shutdownTimeout = time.Second * 5
)

// ListenAndServe starts the given servers and blocks until they stop. Servers
// are shut down when the context is canceled.
func ListenAndServe(ctx context.Context, servers ...*http.Server) {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logs.Warn(errors.Newf("shutting down the server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
	}()

	var wg sync.WaitGroup

	for _, s := range servers {
		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()

			logs.WithTag("addr", s.Addr).Info("starting server")

			switch err := s.ListenAndServe(); err {
			case nil, http.ErrServerClosed, context.Canceled:
				logs.WithTag("addr", s.Addr).Info("stopping server")

			default:
				logs.Warn(errors.Newf("server stopped").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}(s)
	}

	wg.Wait()
}

// MetricsPathFormatter returns an empty path for redirects, bad requests,
// unknown routes and unsupported methods so they do not create a metric
// series per requested path.
func MetricsPathFormatter(statusCode int, path string) string {
	switch statusCode {
	case http.StatusMovedPermanently,
		http.StatusBadRequest,
		http.StatusNotFound,
		http.StatusMethodNotAllowed:
		return ""

	default:
		return path
	}
}
