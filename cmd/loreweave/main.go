// Loreweave - keyword-triggered lore activation for AI-driven text RPGs.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/loreweave/loreweave/internal/activation"
	"github.com/loreweave/loreweave/internal/api"
	"github.com/loreweave/loreweave/internal/bus"
	"github.com/loreweave/loreweave/internal/cache"
	"github.com/loreweave/loreweave/internal/composer"
	"github.com/loreweave/loreweave/internal/domain"
	"github.com/loreweave/loreweave/internal/lorebook"
	"github.com/loreweave/loreweave/internal/repository"
	"github.com/loreweave/loreweave/internal/session"
	"github.com/loreweave/loreweave/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// .env is optional; real env always wins
	_ = godotenv.Load()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("LOREWEAVE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting loreweave",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Session Service
	sessionSvc := session.NewService(repo, cacheImpl)
	slog.Info("session service initialized")

	// Initialize Activation Engine
	engine, err := activation.NewEngine(nil)
	if err != nil {
		slog.Error("failed to initialize activation engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Initialize Codex Engine
	codexEngine := activation.NewCodexEngine()

	// Load rules and codices: database first, then lorebook files
	if err := loadRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	if err := loadCodicesFromDatabase(ctx, repo, codexEngine); err != nil {
		slog.Error("failed to load codices", "error", err)
		os.Exit(1)
	}

	var bookWatcher *lorebook.Watcher
	if cfg.Lorebook.Dir != "" {
		if err := loadLorebook(cfg.Lorebook.Dir, engine, codexEngine); err != nil {
			slog.Error("failed to load lorebook", "dir", cfg.Lorebook.Dir, "error", err)
			os.Exit(1)
		}

		if cfg.Lorebook.Watch {
			bookWatcher, err = lorebook.NewWatcher(cfg.Lorebook.Dir, func(book *lorebook.Book) {
				applyBook(book, engine, codexEngine)
			})
			if err != nil {
				slog.Error("failed to create lorebook watcher", "error", err)
				os.Exit(1)
			}
			if err := bookWatcher.Start(ctx); err != nil {
				slog.Error("failed to start lorebook watcher", "error", err)
				os.Exit(1)
			}
		}
	}
	slog.Info("activation engine initialized",
		"rules_count", engine.RulesCount(),
		"codices_count", codexEngine.CodexCount(),
	)

	// Initialize Composer
	processor := composer.NewProcessor(codexEngine)
	slog.Info("composer initialized", "engine_version", composer.EngineVersion)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("LOREWEAVE_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, engine, processor, sessionSvc, cfg.Engine)

		campaignIDs := []string{}
		if envCampaigns := os.Getenv("LOREWEAVE_CAMPAIGNS"); envCampaigns != "" {
			campaignIDs = []string{envCampaigns}
		}

		workerCfg := worker.Config{
			CampaignIDs: campaignIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "campaign_count", len(campaignIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, codexEngine, processor, sessionSvc, cfg.Engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("loreweave is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	if bookWatcher != nil {
		bookWatcher.Stop()
	}

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("loreweave shutdown complete")
}

// loadConfig builds the runtime configuration: tier defaults, an
// optional YAML file (LOREWEAVE_CONFIG), then env overrides.
func loadConfig() (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if os.Getenv("LOREWEAVE_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if path := os.Getenv("LOREWEAVE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		slog.Info("config file loaded", "path", path)
	}

	if dir := os.Getenv("LOREWEAVE_LOREBOOK_DIR"); dir != "" {
		cfg.Lorebook.Dir = dir
	}
	if os.Getenv("LOREWEAVE_LOREBOOK_WATCH") == "true" {
		cfg.Lorebook.Watch = true
	}

	return cfg, nil
}

// GlobalCampaignID is used for rules that apply to all campaigns.
const GlobalCampaignID = "*"

// loadRulesFromDatabase loads rules from the database into the engine.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *activation.Engine) error {
	dbRules, err := repo.ListRules(ctx, GlobalCampaignID)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no rules in database - configure via POST /rules or a lorebook directory")
	return nil
}

// loadCodicesFromDatabase loads codices from the database into the engine.
func loadCodicesFromDatabase(ctx context.Context, repo domain.Repository, engine *activation.CodexEngine) error {
	dbCodices, err := repo.ListCodices(ctx, GlobalCampaignID)
	if err != nil {
		slog.Warn("failed to list codices from database", "error", err)
		return nil
	}

	if len(dbCodices) > 0 {
		slog.Info("loading codices from database", "count", len(dbCodices))
		engine.LoadCodices(dbCodices)
	}
	return nil
}

// loadLorebook loads rule files from disk on top of database rules.
func loadLorebook(dir string, engine *activation.Engine, codexEngine *activation.CodexEngine) error {
	book, err := lorebook.LoadDir(dir)
	if err != nil {
		return err
	}
	applyBook(book, engine, codexEngine)
	slog.Info("lorebook loaded",
		"dir", dir,
		"rules", len(book.Rules),
		"codices", len(book.Codices),
		"files", len(book.Files),
	)
	return nil
}

// applyBook loads a parsed book into the engines. Rules that fail to
// compile are logged and skipped so one bad file entry cannot take down
// the rest of the book.
func applyBook(book *lorebook.Book, engine *activation.Engine, codexEngine *activation.CodexEngine) {
	for i := range book.Rules {
		rule := book.Rules[i]
		if !rule.Enabled {
			continue
		}
		if err := engine.LoadRule(&rule); err != nil {
			slog.Error("failed to load lorebook rule", "id", rule.ID, "error", err)
		}
	}
	if len(book.Codices) > 0 {
		codices := make([]*domain.Codex, 0, len(book.Codices))
		for i := range book.Codices {
			codices = append(codices, &book.Codices[i])
		}
		codexEngine.LoadCodices(codices)
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║              📜 LOREWEAVE                 ║")
	fmt.Println("  ║       Lore Activation Engine              ║")
	fmt.Println("  ║   The right lore at the right turn.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /evaluate              - Evaluate a turn")
	fmt.Println("    GET  /evaluations/{id}      - Get evaluation by ID")
	fmt.Println("    GET  /rules                 - List all rules")
	fmt.Println("    POST /rules                 - Create a new rule")
	fmt.Println("    POST /rules/reload          - Hot-reload rules from database")
	fmt.Println("    GET  /codices               - List all codices")
	fmt.Println("    POST /codices               - Create a new codex")
	fmt.Println("    PUT  /codices/{id}          - Update a codex")
	fmt.Println("    DELETE /codices/{id}        - Delete a codex")
	fmt.Println("    POST /codices/reload        - Hot-reload codices")
	fmt.Println("    POST /sessions              - Start a session")
	fmt.Println("    POST /sessions/{id}/turns   - Record a turn entry")
	fmt.Println("    POST /sessions/{id}/memories - Add a memory")
	fmt.Println("    GET  /history/stats         - Activation history stats")
	fmt.Println("    POST /history/clear         - Clear activation history")
	fmt.Println("    GET  /health                - Health check")
	fmt.Println()
}
