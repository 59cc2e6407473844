// Package metricsserver runs the Prometheus /metrics endpoint on its own
// listener, separate from the mock API's request path, so a scrape never
// competes with request traffic for the same socket.
package metricsserver

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Handler serves the collected metrics, implemented by internal/metrics.Collector.
type Handler interface {
	ServeHTTP(ctx *fasthttp.RequestCtx)
}

// Start creates and starts the metrics listener. Returns nil, nil if
// enabled is false.
func Start(enabled bool, listen, path string, handler Handler, logger *zap.Logger) (*fasthttp.Server, error) {
	if !enabled {
		if logger != nil {
			logger.Info("metrics collection disabled")
		}
		return nil, nil
	}

	srv := &fasthttp.Server{
		Handler:            requestHandler(path, handler),
		Name:               "sandboxd-metrics",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 1 * 1024,
		TCPKeepalive:       true,
		TCPKeepalivePeriod: 30 * time.Second,
		MaxConnsPerIP:      100,
		MaxRequestsPerConn: 1000,
		Concurrency:        100,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(listen); err != nil {
			if logger != nil {
				logger.Error("metrics server stopped", zap.String("listen", listen), zap.Error(err))
			}
			select {
			case errCh <- err:
			default:
			}
		}
	}()

	// Give ListenAndServe a chance to fail on an already-bound port before
	// the caller treats startup as successful.
	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-errCh:
		return nil, err
	default:
	}

	if logger != nil {
		logger.Info("metrics server listening", zap.String("listen", listen), zap.String("path", path))
	}
	return srv, nil
}

func requestHandler(path string, handler Handler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == path {
			handler.ServeHTTP(ctx)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString("not found")
	}
}
