package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/treefell/internal/api"
	"github.com/annel0/treefell/internal/chop"
	"github.com/annel0/treefell/internal/config"
	"github.com/annel0/treefell/internal/eventbus"
	"github.com/annel0/treefell/internal/journal"
	"github.com/annel0/treefell/internal/logging"
	"github.com/annel0/treefell/internal/observability"
	"github.com/annel0/treefell/internal/preference"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
)

const version = "v0.3.0"

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $TREEFELL_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if err := setupLogging(cfg.Logging); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🌲 Запуск treefell %s", version)

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер остановлен")
}

func setupLogging(cfg config.LoggingConfig) error {
	if cfg.Files {
		if cfg.Dir != "" {
			logging.SetLogDir(cfg.Dir)
		}
		if err := logging.InitDefaultLogger("server"); err != nil {
			return err
		}
		logging.GetLoggerManager().EnableFileLogs(true)
	}

	console, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	file, err := logging.ParseLevel(cfg.FileLevel)
	if err != nil {
		file = logging.DEBUG
	}
	logging.Default().SetLevels(console, file)
	return nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Наблюдаемость ===
	flushSentry, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment, version)
	if err != nil {
		return err
	}
	defer flushSentry(context.Background())

	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, version)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logging.Warn("Ошибка остановки телеметрии: %v", err)
			}
		}()
	}

	if addr := cfg.Server.StatsViewAddr; addr != "" {
		// настройки задаются до statsview.New()
		viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr(addr))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
		logging.Info("📈 Графики runtime: http://%s/debug/statsview", addr)
	}

	// === Шина событий ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return err
	}
	if bus != nil {
		eventbus.Init(bus)
		defer bus.Close()

		exporter, err := eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("eventbus metrics: %w", err)
		}
		exporter.Start()
		defer exporter.Stop()

		if cfg.EventBus.LogEvents {
			sub, err := eventbus.StartLoggingListener(bus)
			if err != nil {
				return fmt.Errorf("eventbus logger: %w", err)
			}
			defer sub.Unsubscribe()
		}
	}

	// === Журнал ===
	jr, err := journal.Open(cfg.JournalOptions())
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer jr.Close()
	logging.Info("📒 Журнал рубок: %s", cfg.Journal.Backend)

	// === Мир ===
	// мир останавливается после оркестратора, а не по сигналу
	w := world.New(cfg.WorldOptions())
	w.Run(context.Background())
	defer func() {
		w.Close()
		<-w.Done()
	}()

	if r := cfg.World.Radius; r > 0 {
		gen := world.NewGenerator(w.Seed())
		var sites []world.TreeSite
		err := w.ExecContext(ctx, func(tx *world.Tx) {
			sites = gen.Generate(tx, vec.Vec2{X: -r * 16, Y: -r * 16}, vec.Vec2{X: r*16 - 1, Y: r*16 - 1})
		})
		if err != nil {
			return fmt.Errorf("world generation: %w", err)
		}
		logging.Info("🌳 Мир %s: %d чанков, %d деревьев", w.Name(), w.ChunkCount(), len(sites))
	}

	// === Рубка ===
	classifier, err := cfg.Classifier()
	if err != nil {
		return err
	}
	prefs, err := openPreferences(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := prefs.(io.Closer); ok {
		defer c.Close()
	}
	preference.Init(prefs)

	orch, err := chop.New(cfg.ChopOptions(), classifier, chop.Options{
		Preferences: prefs,
		Bus:         bus,
		Journal:     jr,
		Registerer:  prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := orch.Close(closeCtx); err != nil {
			logging.Warn("Рубки прерваны при остановке: %v", err)
		}
	}()

	// === REST API ===
	rest, err := api.NewRestServer(api.Config{
		Port:         fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		World:        w,
		Orchestrator: orch,
		Bus:          bus,
		ServiceName:  cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- rest.Start() }()

	select {
	case <-ctx.Done():
		logging.Info("🛑 Получен сигнал остановки")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("rest api: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rest.Stop(shutdownCtx)
}

// openPreferences выбирает хранилище настроек игроков
func openPreferences(ctx context.Context, cfg *config.Config) (preference.API, error) {
	pc := cfg.Preferences
	if pc.Backend != "redis" {
		return preference.NewStore(pc.DefaultEnabled), nil
	}

	var sync *preference.Sync
	if pc.NatsURL != "" {
		s, err := preference.NewSync(cfg.PreferenceSync())
		if err != nil {
			return nil, fmt.Errorf("preferences: %w", err)
		}
		sync = s
	}
	store, err := preference.NewPersistent(ctx, cfg.PreferenceRedis(), pc.DefaultEnabled, sync)
	if err != nil {
		if sync != nil {
			sync.Close()
		}
		return nil, fmt.Errorf("preferences: %w", err)
	}
	return store, nil
}

func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	switch cfg.Backend {
	case "", "memory":
		return eventbus.NewMemoryBus(cfg.Capacity), nil
	case "nats":
		bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, cfg.RetentionDuration())
		if err != nil {
			return nil, fmt.Errorf("eventbus: %w", err)
		}
		logging.Info("📨 JetStream %s (stream=%s)", cfg.URL, cfg.Stream)
		return bus, nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("eventbus: неизвестный бэкенд %q", cfg.Backend)
}
