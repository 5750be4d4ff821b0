// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"

	"github.com/aegis-hr/aegis/internal/agent"
	"github.com/aegis-hr/aegis/internal/config"
	"github.com/aegis-hr/aegis/internal/ingest"
	"github.com/aegis-hr/aegis/internal/provider"
	anthropicprov "github.com/aegis-hr/aegis/internal/provider/anthropic"
	googleprov "github.com/aegis-hr/aegis/internal/provider/google"
	openaiprov "github.com/aegis-hr/aegis/internal/provider/openai"
	"github.com/aegis-hr/aegis/internal/security/sanitize"
	"github.com/aegis-hr/aegis/internal/security/scanner"
	"github.com/aegis-hr/aegis/internal/server"
	"github.com/aegis-hr/aegis/internal/store"
	_ "github.com/aegis-hr/aegis/internal/store/sqlite" // register sqlite backend
	"github.com/aegis-hr/aegis/internal/tools"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// App holds every wired subsystem behind the HTTP surface.
type App struct {
	Registry      *provider.Registry
	Vectors       store.VectorStore
	Conversations store.ConversationStore
	Ingest        *ingest.Manager
	Orchestrator  *agent.Orchestrator
	// Watcher is nil unless ingest.watch_dir is set.
	Watcher *ingest.Watcher
}

// WireApp builds the providers, stores, ingestion pipeline, tools and
// orchestrator described by cfg.
func WireApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg, err := wireProviders(cfg, logger)
	if err != nil {
		return nil, err
	}

	vs, cs, err := openStores(cfg)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	app := &App{Registry: reg, Vectors: vs, Conversations: cs}
	fail := func(err error) (*App, error) {
		_ = app.Close()
		return nil, err
	}

	mgr, gate, err := wireIngest(cfg, reg, vs, logger)
	if err != nil {
		return fail(err)
	}
	app.Ingest = mgr

	orch, err := wireOrchestrator(cfg, reg, mgr, gate, cs, logger)
	if err != nil {
		return fail(err)
	}
	app.Orchestrator = orch

	if cfg.Ingest.WatchDir != "" {
		app.Watcher = ingest.NewWatcher(cfg.Ingest.WatchDir, mgr, logger.With("component", "watcher"))
	}

	return app, nil
}

// Services exposes the app to the HTTP server.
func (a *App) Services() *server.Services {
	return &server.Services{
		Chat:      a.Orchestrator,
		Documents: a.Ingest,
		Providers: a.Registry,
	}
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	if a.Orchestrator != nil {
		a.Orchestrator.Close()
	}

	type closer interface{ Close() error }
	var closers []closer
	if a.Registry != nil {
		closers = append(closers, a.Registry)
	}
	if a.Vectors != nil {
		closers = append(closers, a.Vectors)
	}
	if a.Conversations != nil {
		closers = append(closers, a.Conversations)
	}

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// providerFactory builds a provider.Provider from a ProviderConfig.
type providerFactory func(config.ProviderConfig) (provider.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject failing factories.
var builtinProviderFactories = map[string]providerFactory{
	"anthropic": func(pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"google": func(pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(googleprov.Config{APIKey: pc.APIKey})
	},
	"openai": func(pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"openrouter": func(pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.NewOpenRouter(pc.APIKey, pc.Endpoint)
	},
}

// wireProviders registers every provider that is configured or referenced by
// a model, then applies the default and failover chain.
func wireProviders(cfg *config.Config, logger *slog.Logger) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	registerBuiltinProviders(cfg, reg, logger)

	if len(reg.Names()) == 0 {
		return nil, aegiserr.New(aegiserr.CodeAgentNotReady,
			"no model provider is available; run 'aegis init' or set "+
				provider.EnvKeyVar(provider.ProviderName(config.ProviderFromModel(cfg.Models.Default))))
	}
	if err := reg.SetDefault(cfg.Models.Default); err != nil {
		_ = reg.Close()
		return nil, aegiserr.Reclassify(err, aegiserr.CodeAgentNotReady, "setting default model")
	}
	if len(cfg.Models.Failover) > 0 {
		if err := reg.SetFailover(cfg.Models.Failover); err != nil {
			_ = reg.Close()
			return nil, aegiserr.Reclassify(err, aegiserr.CodeAgentNotReady, "setting failover chain")
		}
	}
	return reg, nil
}

// registerBuiltinProviders creates each wanted provider. Unknown names or
// missing keys are logged and skipped; neither is fatal here.
func registerBuiltinProviders(cfg *config.Config, reg *provider.Registry, logger *slog.Logger) {
	for _, name := range wantedProviders(cfg) {
		pc := cfg.Providers[name]
		if pc.APIKey == "" {
			pc.APIKey = os.Getenv(provider.EnvKeyVar(provider.ProviderName(name)))
		}
		if pc.APIKey == "" {
			logger.Warn("skipping provider without API key", "provider", name)
			continue
		}
		factory, ok := builtinProviderFactories[name]
		if !ok {
			logger.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(pc)
		if err != nil {
			logger.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
		logger.Info("registered provider", "provider", name)
	}
}

// wantedProviders returns the configured providers plus those named by the
// model references, sorted.
func wantedProviders(cfg *config.Config) []string {
	seen := map[string]bool{}
	for name := range cfg.Providers {
		seen[name] = true
	}
	refs := append([]string{cfg.Models.Default, cfg.Models.Embedding}, cfg.Models.Failover...)
	for _, ref := range refs {
		if ref != "" {
			seen[config.ProviderFromModel(ref)] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func openStores(cfg *config.Config) (store.VectorStore, store.ConversationStore, error) {
	vs, cs, err := store.Open(&store.StorageConfig{
		Backend:          cfg.Storage.Backend,
		DataDir:          cfg.Storage.DataDir,
		VectorDimensions: cfg.Models.EmbeddingDims,
	})
	if err != nil {
		return nil, nil, aegiserr.Reclassify(err, aegiserr.CodeCLISetupFailure, "opening stores")
	}
	return vs, cs, nil
}

// wireIngest builds the sanitization gate and the ingestion manager.
func wireIngest(cfg *config.Config, reg *provider.Registry, vs store.VectorStore, logger *slog.Logger) (*ingest.Manager, *sanitize.Gate, error) {
	rules, err := scanner.NewDefaultScanner()
	if err != nil {
		return nil, nil, aegiserr.Reclassify(err, aegiserr.CodeCLISetupFailure, "loading scanner rules")
	}

	gate, err := sanitize.New(sanitize.Config{
		Mode:      sanitize.Mode(cfg.Security.SanitizeMode),
		Scanner:   rules,
		Generator: reg,
		Model:     cfg.Models.Default,
		Logger:    logger.With("component", "sanitize"),
	})
	if err != nil {
		return nil, nil, err
	}

	embedder, err := provider.NewEmbeddingService(reg, cfg.Models.Embedding, cfg.Models.EmbeddingDims, cfg.Ingest.EmbedBatchSize)
	if err != nil {
		return nil, nil, aegiserr.Reclassify(err, aegiserr.CodeAgentNotReady, "creating embedding service")
	}

	mgr, err := ingest.NewManager(vs, embedder, gate, ingest.Options{
		Documents:       ingest.ChunkProfile(cfg.Ingest.Documents),
		Policies:        ingest.ChunkProfile(cfg.Ingest.Policies),
		DuplicatePolicy: ingest.DuplicatePolicy(cfg.Ingest.DuplicatePolicy),
		TempDir:         cfg.Ingest.TempDir,
		Logger:          logger.With("component", "ingest"),
	})
	if err != nil {
		return nil, nil, err
	}
	return mgr, gate, nil
}

func wireOrchestrator(
	cfg *config.Config,
	reg *provider.Registry,
	mgr *ingest.Manager,
	gate *sanitize.Gate,
	cs store.ConversationStore,
	logger *slog.Logger,
) (*agent.Orchestrator, error) {
	temp := float32(cfg.Models.Temperature)
	gen := tools.Generation{Generator: reg, Model: cfg.Models.Default, Temperature: &temp}
	toolLogger := logger.With("component", "tools")

	reviewer, err := tools.NewBiasReviewer(gen)
	if err != nil {
		return nil, err
	}
	talent, err := tools.NewTalentScout(mgr.Retriever(cfg.Tools.TalentScout.K), gen, reviewer, toolLogger)
	if err != nil {
		return nil, err
	}
	policy, err := tools.NewPolicyBot(mgr.Retriever(cfg.Tools.PolicyBot.K), gen, gate, toolLogger)
	if err != nil {
		return nil, err
	}
	onboarder, err := tools.NewOnboarder(gen)
	if err != nil {
		return nil, err
	}

	toolset, err := agent.NewToolSet(talent, policy, onboarder)
	if err != nil {
		return nil, err
	}

	memory, err := agent.NewMemory(cs, cfg.Agent.MemoryWindow)
	if err != nil {
		return nil, err
	}

	mode, err := scanner.ParseMode(cfg.Security.InputMode)
	if err != nil {
		return nil, err
	}
	rules, err := scanner.NewDefaultScanner()
	if err != nil {
		return nil, aegiserr.Reclassify(err, aegiserr.CodeCLISetupFailure, "loading scanner rules")
	}

	return agent.NewOrchestrator(agent.Config{
		Generator:     reg,
		Model:         cfg.Models.Default,
		Temperature:   &temp,
		Tools:         toolset,
		Memory:        memory,
		Input:         sanitize.NewInputFilter(rules, mode, logger.With("component", "input")),
		MaxIterations: cfg.Agent.MaxIterations,
		TurnTimeout:   cfg.Agent.TurnTimeout,
		Logger:        logger.With("component", "agent"),
	})
}

// runWatcher starts the folder watcher, if any, until ctx ends.
func (a *App) runWatcher(ctx context.Context, logger *slog.Logger) {
	if a.Watcher == nil {
		return
	}
	go func() {
		if err := a.Watcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("document watcher stopped", "error", err)
		}
	}()
}
