package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/atominnolab/opensift/internal/adapter"
	"github.com/atominnolab/opensift/internal/adapter/atomwalker"
	"github.com/atominnolab/opensift/internal/adapter/meilisearch"
	"github.com/atominnolab/opensift/internal/adapter/opensearch"
	"github.com/atominnolab/opensift/internal/adapter/solr"
	"github.com/atominnolab/opensift/internal/adapter/wikipedia"
	"github.com/atominnolab/opensift/internal/api"
	"github.com/atominnolab/opensift/internal/config"
	"github.com/atominnolab/opensift/internal/engine"
	"github.com/atominnolab/opensift/internal/llm"
	"github.com/atominnolab/opensift/internal/planner"
	"github.com/atominnolab/opensift/internal/verifier"
)

const version = "0.1.0"

func main() {
	var (
		configPath string
		envPath    string
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "opensift.yaml", "Path to the YAML configuration file")
	flag.StringVar(&envPath, "env", ".env", "Path to an optional .env file")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", envPath, err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.Observability, verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := adapter.NewRegistry()
	registry.Register("wikipedia", wikipedia.New)
	registry.Register("atomwalker", atomwalker.New)
	registry.Register("meilisearch", meilisearch.New)
	registry.Register("opensearch", opensearch.New)
	registry.Register("solr", solr.New)

	for _, name := range cfg.EnabledAdapters() {
		settings := cfg.Search.Adapters[name].ToAdapter()
		if _, err := registry.Initialize(ctx, name, settings); err != nil {
			log.Error().Str("adapter", name).Err(err).Msg("adapter initialization failed, continuing without it")
		}
	}
	if len(registry.Active()) == 0 {
		log.Warn().Msg("no adapters active, searches will return no results")
	}

	gateway := &llm.Gateway{
		Client:       llm.NewOpenAIClient(cfg.AI.APIKey, cfg.AI.BaseURL),
		BaseURL:      cfg.AI.BaseURL,
		APIKey:       cfg.AI.APIKey,
		DefaultModel: cfg.AI.ModelPlanner,
		MaxTokens:    cfg.AI.MaxTokens,
	}
	if cfg.AI.APIKey == "" {
		log.Warn().Msg("no AI api key configured, planner and verifier run in fallback mode")
	} else {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if !gateway.VerifyConnection(probeCtx, cfg.AI.ModelPlanner) {
			log.Warn().Str("model", cfg.AI.ModelPlanner).Msg("LLM connection probe failed, requests will use fallbacks until the endpoint recovers")
		}
		cancel()
	}

	eng := &engine.Engine{
		Planner: &planner.Planner{
			Gateway:    gateway,
			Model:      cfg.AI.ModelPlanner,
			MaxRetries: cfg.AI.MaxRetries,
		},
		Verifier: &verifier.Verifier{
			Gateway:       gateway,
			Model:         cfg.AI.ModelVerifier,
			MaxRetries:    cfg.AI.MaxRetries,
			MaxConcurrent: cfg.Search.MaxConcurrentQueries,
		},
		Registry:             registry,
		MaxConcurrentQueries: cfg.Search.MaxConcurrentQueries,
	}

	server := &api.Server{
		Engine:         eng,
		Registry:       registry,
		Version:        version,
		DefaultAdapter: cfg.Search.DefaultAdapter,
		CORSOrigins:    cfg.Server.CORSOrigins,
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Str("version", version).Msg("opensift listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			if strings.Contains(err.Error(), "address already in use") {
				ev := log.Error().Str("addr", httpSrv.Addr).Err(err)
				if pids := listeningPIDs(cfg.Server.Port); len(pids) > 0 {
					ev = ev.Ints("pids", pids)
				}
				ev.Msg("listen failed: port is already in use, stop the offending process or change server.port")
			} else {
				log.Error().Err(err).Msg("server failed")
			}
			registry.ShutdownAll(context.Background())
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	registry.ShutdownAll(shutdownCtx)
	log.Info().Msg("opensift stopped")
}

func setupLogging(obs config.ObservabilityConfig, verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	if obs.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	level, err := zerolog.ParseLevel(strings.ToLower(obs.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}
