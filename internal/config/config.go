package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/annel0/treefell/internal/chop"
	"github.com/annel0/treefell/internal/journal"
	"github.com/annel0/treefell/internal/logging"
	"github.com/annel0/treefell/internal/preference"
	"github.com/annel0/treefell/internal/tree"
	"github.com/annel0/treefell/internal/world"
	"github.com/annel0/treefell/internal/world/block"
)

// EnvConfig переменная окружения с путём к файлу конфигурации
const EnvConfig = "TREEFELL_CONFIG"

// Config корневая структура конфигурации сервера рубки.
type Config struct {
	World       WorldConfig      `yaml:"world"`
	Chop        ChopConfig       `yaml:"chop"`
	Species     []SpeciesConfig  `yaml:"species"` // Пусто - стандартные породы
	Preferences PreferenceConfig `yaml:"preferences"`
	Journal     JournalConfig    `yaml:"journal"`
	EventBus    EventBusConfig   `yaml:"eventbus"`
	Server      ServerConfig     `yaml:"server"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Logging     LoggingConfig    `yaml:"logging"`
	Sentry      SentryConfig     `yaml:"sentry"`
}

type WorldConfig struct {
	Name      string `yaml:"name"`
	Seed      int64  `yaml:"seed"`
	MinY      int    `yaml:"min_y"`
	MaxY      int    `yaml:"max_y"`
	QueueSize int    `yaml:"queue_size"`
	Radius    int    `yaml:"radius"` // Радиус генерации леса в чанках
}

type DetectorConfig struct {
	Connectivity int `yaml:"connectivity"`
	MaxLogs      int `yaml:"max_logs"`
	MaxLeaves    int `yaml:"max_leaves"`
	MaxHeight    int `yaml:"max_height"`
	LeafRange    int `yaml:"leaf_range"`
	MinLeaves    int `yaml:"min_leaves"`
}

type ChopConfig struct {
	Workers       int            `yaml:"workers"`
	QueueSize     int            `yaml:"queue_size"`
	LeafMass      float32        `yaml:"leaf_mass"`
	DefaultAxis   [3]float32     `yaml:"default_axis"`
	DropAtLanding bool           `yaml:"drop_at_landing"`
	Detector      DetectorConfig `yaml:"detector"`
}

// SpeciesConfig порода дерева; материалы задаются именами (oak_log, oak_leaves)
type SpeciesConfig struct {
	Name          string   `yaml:"name"`
	Logs          []string `yaml:"logs"`
	Leaves        []string `yaml:"leaves"`
	Sapling       string   `yaml:"sapling"`
	SaplingChance *float64 `yaml:"sapling_chance"`
	StickChance   *float64 `yaml:"stick_chance"`
	AppleChance   float64  `yaml:"apple_chance"`
}

type PreferenceConfig struct {
	DefaultEnabled bool   `yaml:"default_enabled"`
	Backend        string `yaml:"backend"` // memory | redis
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db"`
	RedisKey       string `yaml:"redis_key"`
	NatsURL        string `yaml:"nats_url"` // пусто - без синхронизации узлов
	Subject        string `yaml:"subject"`
	NodeID         string `yaml:"node_id"`
}

type JournalConfig struct {
	Backend         string `yaml:"backend"` // memory | badger | redis | mongo | maria | none
	Capacity        int    `yaml:"capacity"`
	BadgerPath      string `yaml:"badger_path"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisKey        string `yaml:"redis_key"`
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
	MariaDSN        string `yaml:"maria_dsn"`
}

type EventBusConfig struct {
	Backend   string `yaml:"backend"` // memory | nats | none
	Capacity  int    `yaml:"capacity"`
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	LogEvents bool   `yaml:"log_events"`
}

type ServerConfig struct {
	RESTPort      int    `yaml:"rest_port"`
	StatsViewAddr string `yaml:"statsview_addr"` // Пусто - графики отключены
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	FileLevel string `yaml:"file_level"`
	Files     bool   `yaml:"files"`
	Dir       string `yaml:"dir"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	det := tree.DefaultDetectorConfig()
	return &Config{
		World: WorldConfig{
			Name:   "overworld",
			Seed:   1,
			MinY:   world.DefaultMinY,
			MaxY:   world.DefaultMaxY,
			Radius: 2,
		},
		Chop: ChopConfig{
			LeafMass:    0.25,
			DefaultAxis: [3]float32{1, 0, 0},
			Detector: DetectorConfig{
				Connectivity: det.Connectivity,
				MaxLogs:      det.MaxLogs,
				MaxLeaves:    det.MaxLeaves,
				MaxHeight:    det.MaxHeight,
				LeafRange:    det.LeafRange,
				MinLeaves:    det.MinLeaves,
			},
		},
		Preferences: PreferenceConfig{
			DefaultEnabled: true,
			Backend:        "memory",
			RedisAddr:      "localhost:6379",
			RedisKey:       "treefell:preferences",
			Subject:        "treefell.preferences",
		},
		Journal: JournalConfig{
			Backend:  "memory",
			Capacity: 1000,
		},
		EventBus: EventBusConfig{
			Backend:   "memory",
			Capacity:  1024,
			Stream:    "TREEFELL",
			Retention: 24,
		},
		Telemetry: TelemetryConfig{ServiceName: "treefell"},
		Logging:   LoggingConfig{Level: "info", FileLevel: "debug", Dir: "logs"},
	}
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", используется TREEFELL_CONFIG; без файла возвращается Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	var errs []error
	if c.World.MinY >= c.World.MaxY {
		errs = append(errs, fmt.Errorf("world: min_y %d >= max_y %d", c.World.MinY, c.World.MaxY))
	}
	if d := c.Chop.Detector.Connectivity; d != 6 && d != 26 {
		errs = append(errs, fmt.Errorf("chop.detector: connectivity должна быть 6 или 26, получено %d", d))
	}
	if c.Chop.LeafMass < 0 {
		errs = append(errs, errors.New("chop: leaf_mass < 0"))
	}
	switch c.Journal.Backend {
	case "", "memory", "none", "badger", "redis", "mongo", "maria", "mysql":
	default:
		errs = append(errs, fmt.Errorf("journal: неизвестный бэкенд %q", c.Journal.Backend))
	}
	switch c.EventBus.Backend {
	case "", "memory", "none":
	case "nats":
		if c.EventBus.URL == "" {
			errs = append(errs, errors.New("eventbus: для nats нужен url"))
		}
	default:
		errs = append(errs, fmt.Errorf("eventbus: неизвестный бэкенд %q", c.EventBus.Backend))
	}
	switch c.Preferences.Backend {
	case "", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("preferences: неизвестный бэкенд %q", c.Preferences.Backend))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if _, err := c.Classifier(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// PreferenceRedis возвращает настройки постоянного хранилища предпочтений
func (c *Config) PreferenceRedis() preference.RedisConfig {
	p := c.Preferences
	return preference.RedisConfig{
		Addr:     p.RedisAddr,
		Password: p.RedisPassword,
		DB:       p.RedisDB,
		Key:      p.RedisKey,
	}
}

// PreferenceSync возвращает настройки синхронизации предпочтений между узлами
func (c *Config) PreferenceSync() preference.SyncConfig {
	return preference.SyncConfig{
		URL:     c.Preferences.NatsURL,
		Subject: c.Preferences.Subject,
		NodeID:  c.Preferences.NodeID,
	}
}

// WorldOptions возвращает настройки мира
func (c *Config) WorldOptions() world.Config {
	return world.Config{
		Name:      c.World.Name,
		Seed:      c.World.Seed,
		MinY:      c.World.MinY,
		MaxY:      c.World.MaxY,
		QueueSize: c.World.QueueSize,
	}
}

// ChopOptions возвращает настройки оркестратора
func (c *Config) ChopOptions() chop.Config {
	cfg := chop.DefaultConfig()
	d := c.Chop.Detector
	cfg.Detector = tree.DetectorConfig{
		Connectivity: d.Connectivity,
		MaxLogs:      d.MaxLogs,
		MaxLeaves:    d.MaxLeaves,
		MaxHeight:    d.MaxHeight,
		LeafRange:    d.LeafRange,
		MinLeaves:    d.MinLeaves,
	}
	cfg.LeafMass = c.Chop.LeafMass
	cfg.DefaultAxis = mgl32.Vec3(c.Chop.DefaultAxis)
	cfg.DropAtLanding = c.Chop.DropAtLanding
	cfg.Workers = c.Chop.Workers
	cfg.QueueSize = c.Chop.QueueSize
	if c.Telemetry.ServiceName != "" {
		cfg.Source = c.Telemetry.ServiceName
	}
	return cfg
}

// JournalOptions возвращает настройки журнала
func (c *Config) JournalOptions() journal.Config {
	j := c.Journal
	return journal.Config{
		Backend:         j.Backend,
		Capacity:        j.Capacity,
		BadgerPath:      j.BadgerPath,
		RedisAddr:       j.RedisAddr,
		RedisPassword:   j.RedisPassword,
		RedisDB:         j.RedisDB,
		RedisKey:        j.RedisKey,
		MongoURI:        j.MongoURI,
		MongoDatabase:   j.MongoDatabase,
		MongoCollection: j.MongoCollection,
		MariaDSN:        j.MariaDSN,
	}
}

// RetentionDuration срок хранения событий в JetStream
func (e EventBusConfig) RetentionDuration() time.Duration {
	return time.Duration(e.Retention) * time.Hour
}

// Classifier строит классификатор пород. Без секции species используются стандартные.
func (c *Config) Classifier() (*tree.Classifier, error) {
	if len(c.Species) == 0 {
		return tree.NewClassifier(tree.DefaultSpecies()...)
	}
	species := make([]*tree.Species, 0, len(c.Species))
	for _, sc := range c.Species {
		sp, err := sc.build()
		if err != nil {
			return nil, err
		}
		species = append(species, sp)
	}
	return tree.NewClassifier(species...)
}

func (sc SpeciesConfig) build() (*tree.Species, error) {
	logs, err := materials(sc.Logs)
	if err != nil {
		return nil, fmt.Errorf("species %s: %w", sc.Name, err)
	}
	leaves, err := materials(sc.Leaves)
	if err != nil {
		return nil, fmt.Errorf("species %s: %w", sc.Name, err)
	}
	sp, err := tree.NewSpecies(sc.Name, logs, leaves)
	if err != nil {
		return nil, err
	}
	if sc.Sapling != "" {
		m, ok := block.ByName(sc.Sapling)
		if !ok {
			return nil, fmt.Errorf("species %s: неизвестный материал %q", sc.Name, sc.Sapling)
		}
		sp.Sapling = m
	}
	if sc.SaplingChance != nil {
		sp.SaplingChance = *sc.SaplingChance
	}
	if sc.StickChance != nil {
		sp.StickChance = *sc.StickChance
	}
	sp.AppleChance = sc.AppleChance
	return sp, nil
}

func materials(names []string) ([]block.Material, error) {
	out := make([]block.Material, 0, len(names))
	for _, n := range names {
		m, ok := block.ByName(n)
		if !ok {
			return nil, fmt.Errorf("неизвестный материал %q", n)
		}
		out = append(out, m)
	}
	return out, nil
}

// GetRESTPort возвращает порт REST API: config -> TREEFELL_REST_PORT -> 8088
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "TREEFELL_REST_PORT", 8088)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}
