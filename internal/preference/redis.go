package preference

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/annel0/treefell/internal/logging"
)

// RedisConfig настройки постоянного хранилища настроек
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Key          string        // Hash игрок -> 0/1
	WriteTimeout time.Duration // Таймаут записи одной настройки
}

// DefaultRedisConfig возвращает настройки по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Key:          "treefell:preferences",
		WriteTimeout: 2 * time.Second,
	}
}

// Persistent хранилище настроек с горячим слоем в памяти и Redis hash в качестве
// постоянного слоя. IsEnabled читает только память и не блокирует цикл мира;
// Set пишет сквозь в Redis и рассылает изменение другим узлам через Sync.
type Persistent struct {
	local   *Store
	client  *redis.Client
	key     string
	timeout time.Duration
	sync    *Sync
	log     *logging.Logger
}

// NewPersistent подключается к Redis и загружает все сохранённые настройки.
// sync может быть nil для одиночного узла.
func NewPersistent(ctx context.Context, cfg RedisConfig, defaultEnabled bool, sync *Sync) (*Persistent, error) {
	def := DefaultRedisConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.Key == "" {
		cfg.Key = def.Key
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	p := &Persistent{
		local:   NewStore(defaultEnabled),
		client:  client,
		key:     cfg.Key,
		timeout: cfg.WriteTimeout,
		sync:    sync,
		log:     logging.GetComponentLogger("preference"),
	}
	n, err := p.load(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}

	if sync != nil {
		if err := sync.Subscribe(p.apply); err != nil {
			client.Close()
			return nil, err
		}
	}
	p.log.Info("Настройки игроков загружены из Redis %s: %d записей", cfg.Addr, n)
	return p, nil
}

func (p *Persistent) load(ctx context.Context) (int, error) {
	all, err := p.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		return 0, fmt.Errorf("load preferences: %w", err)
	}
	loaded := 0
	for field, value := range all {
		id, err := uuid.Parse(field)
		if err != nil {
			p.log.Warn("Пропущена настройка с некорректным UUID %q", field)
			continue
		}
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			p.log.Warn("Пропущена настройка %s: %v", field, err)
			continue
		}
		p.local.Set(id, enabled)
		loaded++
	}
	return loaded, nil
}

// apply применяет изменение с другого узла только к памяти
func (p *Persistent) apply(u Update) {
	p.local.Set(u.Player, u.Enabled)
}

// IsEnabled сообщает, включена ли рубка у игрока
func (p *Persistent) IsEnabled(player uuid.UUID) bool {
	return p.local.IsEnabled(player)
}

// Set меняет настройку. Ошибки Redis и NATS логируются: значение в памяти
// уже изменено и действует на этом узле.
func (p *Persistent) Set(player uuid.UUID, enabled bool) {
	p.local.Set(player, enabled)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.HSet(ctx, p.key, player.String(), strconv.FormatBool(enabled)).Err(); err != nil {
		p.log.Error("Не удалось сохранить настройку %s: %v", player, err)
	}
	if p.sync != nil {
		if err := p.sync.Publish(player, enabled); err != nil {
			p.log.Warn("Не удалось разослать настройку %s: %v", player, err)
		}
	}
}

// Local возвращает горячий слой
func (p *Persistent) Local() *Store { return p.local }

// Close закрывает соединения
func (p *Persistent) Close() error {
	if p.sync != nil {
		_ = p.sync.Close()
	}
	return p.client.Close()
}
