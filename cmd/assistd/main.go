// Command assistd runs the assistant service: the dialogue core plus its
// HTTP and websocket surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/balncd/assist/config"
	"github.com/balncd/assist/core"
	"github.com/balncd/assist/dialogue"
	"github.com/balncd/assist/docstore"
	"github.com/balncd/assist/handlers"
	"github.com/balncd/assist/memory"
	chromemindex "github.com/balncd/assist/memory/index/chromem"
	"github.com/balncd/assist/prefs"
	"github.com/balncd/assist/provider"
	"github.com/balncd/assist/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	docs, err := docstore.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer docs.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	var memOpts []memory.Option
	if cfg.UseVectorIndex {
		memOpts = append(memOpts, memory.WithIndex(chromemindex.New()))
	}
	memStore := memory.NewStore(docs, embedder, nil, memOpts...)

	prefStore, err := prefs.New(docs)
	if err != nil {
		return fmt.Errorf("create preference store: %w", err)
	}

	p, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	calc := handlers.NewProviderCalculator(p)
	handlerMap := map[core.QueryType]core.Handler{
		core.QueryTax:     handlers.NewTax(calc),
		core.QueryIncome:  handlers.NewIncome(calc),
		core.QueryGeneral: handlers.NewGeneral(p),
	}

	managerOpts := []dialogue.Option{dialogue.WithRecallLimit(cfg.RecallLimit)}
	if cfg.ProviderClassification {
		managerOpts = append(managerOpts, dialogue.WithProviderClassification())
	}
	manager := dialogue.New(memStore, prefStore, p, handlerMap, managerOpts...)

	svc := service.New(manager, memStore, prefStore, p, logger)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr, "provider", cfg.Provider, "embedder", cfg.Embedder)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}

		// Let in-flight background persistence finish before the store closes.
		manager.Wait()
		return nil
	})

	return g.Wait()
}

func buildProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
		var opts []provider.AnthropicOption
		if cfg.AnthropicModel != "" {
			opts = append(opts, provider.WithModel(cfg.AnthropicModel))
		}
		return provider.NewAnthropic(&client, opts...), nil
	case "stub":
		return provider.NewStub(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
