package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BarzinL/IsoTalia/internal/command"
	"github.com/BarzinL/IsoTalia/internal/config"
	"github.com/BarzinL/IsoTalia/internal/core/clock"
	"github.com/BarzinL/IsoTalia/internal/core/ecs"
	"github.com/BarzinL/IsoTalia/internal/data"
	gonet "github.com/BarzinL/IsoTalia/internal/net"
	"github.com/BarzinL/IsoTalia/internal/persist"
	"github.com/BarzinL/IsoTalia/internal/replay"
	"github.com/BarzinL/IsoTalia/internal/replication"
	"github.com/BarzinL/IsoTalia/internal/scripting"
	"github.com/BarzinL/IsoTalia/internal/sim"
)

const playerTemplate = "player"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Printf("\033[36;1m  │\033[0m %-41s \033[36;1m│\033[0m\n", serverName+"  v0.1.0")
	fmt.Println("\033[36;1m  │\033[0m      action-economy simulation server     \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	cfgPath := flag.String("config", "config/server.toml", "path to the server config")
	replayRun := flag.String("replay", "", "re-run a journaled run ID and print its event digest")
	replayTicks := flag.Uint64("ticks", 0, "ticks to replay (default: through the last journaled command)")
	flag.Parse()
	if p := os.Getenv("ISOTALIA_CONFIG"); p != "" {
		*cfgPath = p
	}

	// 1. Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 3. Static data
	printSection("Data")
	terrain, err := data.LoadTerrainTable(cfg.Data.Terrain)
	if err != nil {
		return fmt.Errorf("load terrain: %w", err)
	}
	printStat("Terrain types", terrain.Count())

	actors, err := data.LoadActorTable(cfg.Data.Actors)
	if err != nil {
		return fmt.Errorf("load actors: %w", err)
	}
	printStat("Actor templates", actors.Count())

	spawns, err := data.LoadSpawnList(cfg.Data.Spawns)
	if err != nil {
		return fmt.Errorf("load spawns: %w", err)
	}
	printStat("Spawn entries", len(spawns))

	scripts, err := scripting.NewEngine(cfg.Data.Scripts, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("load scripts: %w", err)
	}
	defer scripts.Close()
	printOK("Lua scripts loaded")
	fmt.Println()

	deps := sim.Deps{Terrain: terrain, Actors: actors, Scripts: scripts}

	// 4. Database
	var journalRepo *persist.JournalRepo
	if cfg.Database.Enabled {
		printSection("Database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("Migrations applied")
		fmt.Println()

		journalRepo = persist.NewJournalRepo(db)
		deps.ChunkStore = persist.NewChunkRepo(db)
		deps.Journal = journalRepo
	}

	if *replayRun != "" {
		return replayJournal(cfg, deps, spawns, journalRepo, *replayRun, *replayTicks, log)
	}

	deps.Run = uuid.New()
	if journalRepo != nil && cfg.Simulation.JournalEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := journalRepo.BeginRun(ctx, deps.Run, cfg.Simulation.Seed, int(time.Second/cfg.Simulation.TickRate))
		cancel()
		if err != nil {
			return err
		}
	}

	// 5. Network intake
	deps.Queue = command.NewQueue()
	var server *gonet.Server
	if cfg.Network.Enabled {
		server = gonet.NewServer(cfg.Network, deps.Queue, log.Named("net"))
		deps.Sessions = server
	}

	// 6. Simulation
	s, err := sim.New(cfg, deps, log)
	if err != nil {
		return err
	}
	player, spawned, err := populate(s, spawns)
	if err != nil {
		return err
	}

	printSection("World")
	printStat("Actors spawned", spawned)
	printStat("Chunks resident", len(s.State.LoadedChunks()))
	fmt.Println()

	// 7. Replication
	if cfg.Replication.Enabled {
		url := cfg.Replication.URL
		if cfg.Replication.Embedded {
			ns, err := replication.NewEmbeddedServer(log.Named("nats"),
				replication.WithHost(cfg.Replication.Host),
				replication.WithPort(cfg.Replication.Port),
				replication.WithStartTimeout(cfg.Replication.StartTimeout),
			)
			if err != nil {
				return err
			}
			if err := ns.Start(); err != nil {
				return err
			}
			defer ns.Shutdown()
			url = ns.ClientURL()
		}
		pub, err := replication.Connect(url, cfg.Replication.Subject, s.Bus, s.Clock, log.Named("replication"))
		if err != nil {
			return err
		}
		defer pub.Close(5 * time.Second)
		printOK("Replicating events to " + cfg.Replication.Subject + ".*")
	}

	if server != nil {
		if err := server.Start(); err != nil {
			return err
		}
	}

	// 8. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Simulation.TickRate)
	defer ticker.Stop()

	printSection("Ready")
	if server != nil {
		printReady(fmt.Sprintf("Listening on ws://%s%s?actor=%d", server.Addr(), cfg.Network.Path, uint64(player)))
	}
	printReady(fmt.Sprintf("Tick loop running (tick: %s, run: %s)", cfg.Simulation.TickRate, deps.Run))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			s.Step()
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if server != nil {
				_ = server.Shutdown(ctx)
			}
			err := s.Close(ctx)
			cancel()
			log.Info("server stopped",
				zap.Uint64("ticks", uint64(s.Clock.Now())),
				zap.String("digest", s.Digest.Sum()),
			)
			return err
		}
	}
}

// replayJournal rebuilds the world from the same config, feeds it the
// journaled commands and prints the resulting digest.
func replayJournal(cfg *config.Config, deps sim.Deps, spawns []data.SpawnEntry, repo *persist.JournalRepo, runID string, ticks uint64, log *zap.Logger) error {
	if repo == nil {
		return fmt.Errorf("replay needs database.enabled = true")
	}
	run, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("replay run id: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	entries, err := repo.LoadJournal(ctx, run)
	cancel()
	if err != nil {
		return err
	}

	cfg.Simulation.JournalEnabled = false
	deps.Journal = nil
	deps.ChunkStore = nil // replays start from the generated world
	s, err := sim.New(cfg, deps, log)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())
	if _, _, err := populate(s, spawns); err != nil {
		return err
	}

	script := replay.NewScript(entries)
	through := script.Last()
	if ticks > 0 {
		through = clock.Ticks(ticks)
	}
	s.Play(script, through)

	printSection("Replay")
	printStat("Commands", len(entries))
	printStat("Events", s.Digest.Events())
	printReady("Digest " + s.Digest.Sum())
	return nil
}

// populate loads the spawn area and places the player followed by the spawn
// list. Both the live server and replays go through here, so entity IDs line
// up with the journal.
func populate(s *sim.Simulation, spawns []data.SpawnEntry) (ecs.EntityID, int, error) {
	cfg := s.Config.Simulation
	if err := s.LoadAround(cfg.SpawnX, cfg.SpawnY, s.Config.Scheduler.KeepRadius, 30*time.Second); err != nil {
		return 0, 0, err
	}
	player, err := s.Spawn(playerTemplate, cfg.SpawnX, cfg.SpawnY)
	if err != nil {
		return 0, 0, err
	}
	n, err := s.SpawnAll(spawns)
	if err != nil {
		return 0, 0, err
	}
	return player, n + 1, nil
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
