package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tame2d/engine/internal/config"
	"github.com/tame2d/engine/internal/data"
	gonet "github.com/tame2d/engine/internal/net"
	"github.com/tame2d/engine/internal/persist"
	"github.com/tame2d/engine/internal/scene"
	"github.com/tame2d/engine/internal/scripting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m                tame  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m          2D scene engine host             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main host logic ────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner()

	// 3. Game and scripts
	printSection("Engine")
	game, err := scene.NewGame(scene.Config{
		CellSize:   cfg.Engine.CellSize,
		TickRate:   cfg.Engine.TickRate,
		CatchupCap: cfg.Engine.CatchupCap,
	}, log)
	if err != nil {
		return fmt.Errorf("game: %w", err)
	}
	scripts, err := scripting.NewEngine(cfg.Data.Scripts, game, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scripts.Close()
	printStat("script classes", len(scripts.Classes()))
	log.Debug("classes registered", zap.Strings("classes", game.Registry().ClassNames()))

	// 4. Optional snapshot restore
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var saver *persist.Autosaver
	var restored []string
	if cfg.Database.Enabled {
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := persist.RunMigrations(ctx, db.Pool, log); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		saver, err = persist.NewAutosaver(ctx, persist.NewSnapshotRepo(db), game, log)
		if err != nil {
			return fmt.Errorf("autosave: %w", err)
		}
		if restored, err = saver.RestoreAll(ctx); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		printStat("restored scenes", len(restored))
	}

	// 5. Scene file; restored scenes keep their snapshot content
	table, err := data.LoadSceneTable(cfg.Data.Scenes)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warn("scene file missing, starting empty", zap.String("path", cfg.Data.Scenes))
	case err != nil:
		return fmt.Errorf("scenes: %w", err)
	default:
		n, err := data.Spawn(game, table.Without(restored...))
		if err != nil {
			return fmt.Errorf("spawn: %w", err)
		}
		printStat("spawned entities", n)
	}
	printStat("scenes", len(game.Scenes()))
	fmt.Println()

	// 6. Websocket host
	server, err := gonet.NewServer(cfg.Network, log)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	go server.Serve()
	host := gonet.NewHost(game, server, cfg.Network.MaxMessagesPerFrame, log)
	defer host.Close()

	// 7. Frame loop
	scripts.Seal()
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Engine.FrameInterval)
	defer ticker.Stop()

	var autosave <-chan time.Time
	if saver != nil {
		t := time.NewTicker(cfg.Database.AutosaveInterval)
		defer t.Stop()
		autosave = t.C
	}

	printSection("Ready")
	printReady(fmt.Sprintf("listening on ws://%s%s", server.Addr(), cfg.Network.Path))
	printReady(fmt.Sprintf("frame loop started (frame: %s, tick rate: %d/s)", cfg.Engine.FrameInterval, cfg.Engine.TickRate))
	fmt.Println()

	loopCtx, stop := context.WithCancel(context.Background())
	defer stop()
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if err := host.Frame(loopCtx, elapsed); err != nil {
				return fmt.Errorf("frame: %w", err)
			}
		case <-autosave:
			if _, err := saver.SaveAll(loopCtx, false); err != nil {
				log.Error("autosave", zap.Error(err))
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			stop()
			if saver != nil {
				saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if _, err := saver.SaveAll(saveCtx, true); err != nil {
					log.Error("final save", zap.Error(err))
				}
				cancel()
			}
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutCtx); err != nil {
				log.Warn("server shutdown", zap.Error(err))
			}
			log.Info("host stopped")
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
