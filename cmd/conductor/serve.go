package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/conductorhq/conductor/agent"
	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/eventbus"
	"github.com/conductorhq/conductor/executor"
	"github.com/conductorhq/conductor/guard"
	"github.com/conductorhq/conductor/llms"
	"github.com/conductorhq/conductor/logger"
	"github.com/conductorhq/conductor/mission"
	"github.com/conductorhq/conductor/mission/evidence"
	"github.com/conductorhq/conductor/observability"
	"github.com/conductorhq/conductor/pattern"
	"github.com/conductorhq/conductor/sandbox"
	"github.com/conductorhq/conductor/server"
	"github.com/conductorhq/conductor/store"
	"github.com/conductorhq/conductor/tool"
	"github.com/conductorhq/conductor/watchdog"
)

// defaultProjectID is the single-tenant project scope this process's
// memory tools and evidence checks operate under — wiring for a
// multi-project Memory Manager is left to the Store's own project_id
// columns (spec §6), not to a per-request tool registry rebuild.
const defaultProjectID = "default"

// ServeCmd boots the full mission runtime and blocks until terminated
// (grounded on hector's cmd/hector ServeCmd.Run wiring sequence: signal
// handling -> config load -> shared store -> domain wiring -> HTTP server
// -> block).
type ServeCmd struct {
	Workspace string `help:"Workspace directory agents read and write files in." type:"path" default:"./workspace"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down...")
		cancel()
	}()

	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return fmt.Errorf("cmd/conductor: load config: %w", err)
	}

	log := logger.Init(logger.Config{Level: cfg.Global.Logging.Level, Format: cfg.Global.Logging.Format})

	if err := os.MkdirAll(c.Workspace, 0o755); err != nil {
		return fmt.Errorf("cmd/conductor: create workspace: %w", err)
	}

	db, err := store.Open(cfg.Global.Store.Dialect, cfg.Global.Store.DSN)
	if err != nil {
		return fmt.Errorf("cmd/conductor: open store: %w", err)
	}
	defer db.Close()

	missionStore := store.NewMissionStore(db)
	memoryStore := store.NewMemoryStore(db)
	watchdogStore := store.NewWatchdogStore(db)
	auditStore := store.NewAuditStore(db)
	feedbackStore := store.NewFeedbackStore(db, log)

	llmRegistry := llms.NewRegistry()
	for name, llmCfg := range cfg.LLMs {
		llmCfg := llmCfg
		if _, err := llmRegistry.CreateFromConfig(name, &llmCfg); err != nil {
			return fmt.Errorf("cmd/conductor: create llm provider %q: %w", name, err)
		}
	}
	defaultProvider, err := pickDefaultProvider(cfg, llmRegistry)
	if err != nil {
		return fmt.Errorf("cmd/conductor: %w", err)
	}

	agentRegistry := agent.NewRegistry()
	agentRegistry.LoadFromConfig(cfg.Agents)

	sandboxExec := sandbox.New(c.Workspace, cfg.Global.Sandbox, log)
	guardrails := guard.NewGuardrails(cfg.Global.Guardrails, auditStore, log)

	toolRegistry := tool.NewRegistry()
	registerBuiltinTools(toolRegistry, c.Workspace, memoryStore)

	exec := executor.New(defaultProvider, toolRegistry, guardrails)
	patternEngine := pattern.New(exec, newAgentResolver(agentRegistry), memoryStore)
	patternRunner := mission.NewPatternRunner(patternEngine, mission.NewPatternTypeResolver(cfg.Patterns))

	evidenceChecker := evidence.New(newSandboxRunner(sandboxExec))
	summarizer := newLLMSummarizer(defaultProvider)

	orchestrator := mission.New(missionStore, memoryStore, patternRunner, summarizer, evidenceChecker, feedbackStore, log)

	bus := eventbus.New()

	obsMgr, err := observability.NewManager(ctx, &cfg.Global.Observability, log)
	if err != nil {
		return fmt.Errorf("cmd/conductor: observability: %w", err)
	}
	defer obsMgr.Shutdown(context.Background())

	authn, err := server.NewAuthenticator(ctx, cfg.Global.Auth)
	if err != nil {
		return fmt.Errorf("cmd/conductor: authenticator: %w", err)
	}

	srv := server.New(&cfg.Global.Server, orchestrator, missionStore, cfg, bus,
		server.WithAuthenticator(authn),
		server.WithObservability(obsMgr),
		server.WithLogger(log),
	)

	wd := watchdog.New(
		watchdogStore,
		watchdogStore,
		watchdog.NewHTTPHealthChecker(cfg.Global.Watchdog.HealthURL),
		nil, // LLM health: a Generate-based probe would burn tokens every tick across four provider types; left unwired.
		watchdog.DFDiskChecker{},
		watchdog.NewFindTempCleaner(os.TempDir()),
		newWatchdogResumer(srv.Runner()),
		log,
	)

	log.Info("conductor starting", "workspace", c.Workspace, "agents", len(cfg.Agents), "workflows", len(cfg.Workflows))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error { return wd.Run(gctx) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}

// pickDefaultProvider resolves the one llms.Provider the shared pattern
// Engine and Summarizer bind to: the entry named "default" if present,
// otherwise the lexicographically first configured provider, so the
// choice is deterministic across restarts despite Go's randomized map
// iteration.
func pickDefaultProvider(cfg *config.Config, registry *llms.Registry) (llms.Provider, error) {
	if len(cfg.LLMs) == 0 {
		return nil, fmt.Errorf("no llm providers configured")
	}
	if _, ok := cfg.LLMs["default"]; ok {
		return registry.Get("default")
	}
	names := make([]string, 0, len(cfg.LLMs))
	for name := range cfg.LLMs {
		names = append(names, name)
	}
	sort.Strings(names)
	return registry.Get(names[0])
}

func registerBuiltinTools(registry *tool.Registry, workspace string, memory *store.MemoryStore) {
	_ = registry.Register(tool.ListFilesTool{ProjectPath: workspace})
	_ = registry.Register(tool.MemorySearchTool{Memory: memory, ProjectID: defaultProjectID})
	_ = registry.Register(tool.MemoryStoreTool{Memory: memory, ProjectID: defaultProjectID})
	// deep_search has no external research collaborator wired — no
	// DeepSearcher implementation exists in this module's dependency set.
}
