package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/treefell/internal/logging"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr     string // Адрес Redis сервера
	Password string // Пароль (пустой если не требуется)
	DB       int    // Номер базы данных
	Key      string // Ключ списка журнала
	MaxLen   int    // Максимальная длина списка
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Key:    "treefell:chops",
		MaxLen: 10000,
	}
}

// Redis хранит журнал в ограниченном списке: LPUSH + LTRIM
type Redis struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewRedis подключается к Redis и проверяет соединение
func NewRedis(cfg RedisConfig) (*Redis, error) {
	def := DefaultRedisConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.Key == "" {
		cfg.Key = def.Key
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = def.MaxLen
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetStorageLogger().Info("Журнал рубок подключен к Redis %s (ключ %s)", cfg.Addr, cfg.Key)
	return &Redis{client: client, key: cfg.Key, maxLen: int64(cfg.MaxLen)}, nil
}

// Append добавляет запись в голову списка и обрезает хвост одним пайплайном
func (r *Redis) Append(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, r.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// Recent возвращает до n последних записей
func (r *Redis) Recent(ctx context.Context, n int) ([]Record, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n) - 1
	}
	items, err := r.client.LRange(ctx, r.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	out := make([]Record, 0, len(items))
	for _, item := range items {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			logging.GetStorageLogger().Warn("Пропущена повреждённая запись журнала: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
