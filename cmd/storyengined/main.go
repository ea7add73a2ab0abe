// Command storyengined is the service-dispatch engine's server process: it
// loads configuration, wires the dispatch core to its container and HTTP
// collaborators, registers built-in internal commands, and serves the
// inbound gateway and subscription-callback HTTP endpoints until signaled
// to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nemaniarjun/storyengine/internal/container"
	"github.com/nemaniarjun/storyengine/internal/dispatch"
	"github.com/nemaniarjun/storyengine/internal/eventlog"
	"github.com/nemaniarjun/storyengine/internal/httpx"
	"github.com/nemaniarjun/storyengine/internal/server"
	"github.com/nemaniarjun/storyengine/internal/storymodel"
	"github.com/nemaniarjun/storyengine/internal/storyrun"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	addr := flag.String("addr", "0.0.0.0:8082", "listen address")
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	appsPath := flag.String("apps", "", "path to a JSON application definitions file (optional)")
	resultsPath := flag.String("results", "", "path to a JSONL file to append dispatch results to (optional)")
	flag.Parse()

	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		zl.Fatal().Err(err).Msg("loading configuration")
	}

	registry := dispatch.NewRegistry()
	registerBuiltins(registry)
	for _, svc := range registry.List() {
		zl.Info().Str("service", svc.Service).Strs("commands", svc.Commands).Msg("registered internal service")
	}

	containers := container.NewManager()
	httpClient := httpx.New()
	executor := dispatch.NewExecutor(registry, containers, httpClient)

	log := eventlog.NewLog()

	var sink storyrun.ResultSink = storyrun.NewMemorySink()
	if *resultsPath != "" {
		f, err := os.OpenFile(*resultsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			zl.Fatal().Err(err).Msg("opening results file")
		}
		defer f.Close()
		sink = storyrun.NewJSONLSink(f)
	}

	metrics := server.NewMetrics(prometheus.DefaultRegisterer)
	srv := server.NewServer(executor, metrics, log, zl, sink)

	if *appsPath != "" {
		apps, err := server.LoadApplications(*appsPath, cfg)
		if err != nil {
			zl.Fatal().Err(err).Msg("loading applications")
		}
		for _, app := range apps {
			srv.RegisterApp(app)
			zl.Info().Str("app_id", app.AppID).Int("stories", len(app.StoryTrees)).Msg("registered application")
		}
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		zl.Fatal().Err(err).Msg("listen")
	}

	httpSrv := &http.Server{Handler: srv.Mux()}

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.Serve(ln) }()

	zl.Info().Str("addr", ln.Addr().String()).Msg("storyengined listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zl.Info().Stringer("signal", sig).Msg("received signal, shutting down")
	case err := <-serveErr:
		zl.Error().Err(err).Msg("serve error")
		os.Exit(1)
	}

	containers.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "storyengined: shutdown: %v\n", err)
	}
}

// registerBuiltins registers the engine's built-in internal services —
// currently just "log", the one every story can call without a configured
// container.
func registerBuiltins(reg *dispatch.Registry) {
	reg.Register("log", "info", []string{"msg"}, "none",
		func(ctx context.Context, story storymodel.Story, line storymodel.Line, args map[string]any) (any, error) {
			story.Logger().Info("%v", args["msg"])
			return nil, nil
		})
	reg.Register("log", "debug", []string{"msg"}, "none",
		func(ctx context.Context, story storymodel.Story, line storymodel.Line, args map[string]any) (any, error) {
			story.Logger().Debug("%v", args["msg"])
			return nil, nil
		})
}
