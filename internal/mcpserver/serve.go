// Package mcpserver exposes fllm capabilities as Model Context Protocol
// servers: the agent toolset, Perplexity web search and a page crawler.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/foundationallm/foundationallm-sub000/internal/logging"
	"github.com/foundationallm/foundationallm-sub000/internal/metrics"
)

// Transport selects how a server talks to its client.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// EndpointPath is where the streamable HTTP transport is mounted.
const EndpointPath = "/mcp"

// ParseTransport accepts stdio or http (streamable-http is an alias).
func ParseTransport(value string) (Transport, error) {
	switch value {
	case "", string(TransportStdio):
		return TransportStdio, nil
	case string(TransportHTTP), "streamable-http":
		return TransportHTTP, nil
	default:
		return "", fmt.Errorf("unsupported transport %q (expected stdio|http)", value)
	}
}

// ServeOptions configures Serve.
type ServeOptions struct {
	Transport Transport
	// Addr is the listen address for the HTTP transport.
	Addr    string
	Metrics *metrics.Registry
	Logger  *zap.SugaredLogger
	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
}

// Serve runs s until ctx is cancelled or the transport fails.
func Serve(ctx context.Context, s *server.MCPServer, opts ServeOptions) error {
	logger := logging.OrNop(opts.Logger)
	switch opts.Transport {
	case TransportStdio, "":
		stdin := opts.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		stdout := opts.Stdout
		if stdout == nil {
			stdout = os.Stdout
		}
		logger.Debugw("serving mcp over stdio")
		err := server.NewStdioServer(s).Listen(ctx, stdin, stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case TransportHTTP:
		return serveHTTP(ctx, s, opts, logger)
	default:
		return fmt.Errorf("unsupported transport %q", opts.Transport)
	}
}

// Handler mounts the streamable HTTP transport and, when configured, the
// Prometheus endpoint.
func Handler(ctx context.Context, s *server.MCPServer, registry *metrics.Registry) http.Handler {
	streamable := server.NewStreamableHTTPServer(
		s,
		server.WithEndpointPath(EndpointPath),
		server.WithHTTPContextFunc(func(_ context.Context, _ *http.Request) context.Context {
			return ctx
		}),
	)
	router := chi.NewRouter()
	router.Handle(EndpointPath, streamable)
	if registry != nil {
		router.Handle("/metrics", registry.Handler())
	}
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return router
}

func serveHTTP(ctx context.Context, s *server.MCPServer, opts ServeOptions, logger *zap.SugaredLogger) error {
	if opts.Addr == "" {
		return errors.New("mcpserver: addr is required for http transport")
	}
	httpServer := &http.Server{
		Addr:              opts.Addr,
		Handler:           Handler(ctx, s, opts.Metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("serving mcp over http", "url", fmt.Sprintf("http://%s%s", opts.Addr, EndpointPath))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Infow("shutting down mcp server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
