package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/treefell/internal/vec"
)

// ErrClosed возвращается при обращении к закрытому журналу
var ErrClosed = errors.New("journal: журнал закрыт")

// Record запись журнала о завершённой рубке
type Record struct {
	ID         string     `json:"id" bson:"_id"`
	PlayerID   string     `json:"player_id" bson:"player_id"`
	PlayerName string     `json:"player_name" bson:"player_name"`
	World      string     `json:"world" bson:"world"`
	Species    string     `json:"species" bson:"species"`
	Origin     vec.Vec3   `json:"origin" bson:"origin"`
	State      string     `json:"state" bson:"state"`
	Reason     string     `json:"reason,omitempty" bson:"reason,omitempty"`
	Logs       int        `json:"logs" bson:"logs"`
	Leaves     int        `json:"leaves" bson:"leaves"`
	Drops      int        `json:"drops" bson:"drops"`
	Axis       [3]float32 `json:"axis" bson:"axis"`
	StartedAt  time.Time  `json:"started_at" bson:"started_at"`
	FinishedAt time.Time  `json:"finished_at" bson:"finished_at"`
}

// Duration возвращает длительность рубки
func (r Record) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Journal хранит историю рубок
type Journal interface {
	// Append добавляет запись
	Append(ctx context.Context, r Record) error
	// Recent возвращает до n последних записей, новые первыми
	Recent(ctx context.Context, n int) ([]Record, error)
	Close() error
}

// Config выбирает и настраивает бэкенд журнала
type Config struct {
	Backend  string // memory | badger | redis | mongo | maria | none
	Capacity int    // Максимум хранимых записей (memory, redis)

	BadgerPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	MariaDSN string
}

// Open создаёт журнал по конфигурации
func Open(cfg Config) (Journal, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.Capacity), nil
	case "none":
		return Nop{}, nil
	case "badger":
		return OpenBadger(cfg.BadgerPath)
	case "redis":
		return NewRedis(RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB, Key: cfg.RedisKey, MaxLen: cfg.Capacity})
	case "mongo":
		return NewMongo(MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDatabase, Collection: cfg.MongoCollection})
	case "maria", "mysql":
		return NewMaria(cfg.MariaDSN)
	}
	return nil, fmt.Errorf("journal: неизвестный бэкенд %q", cfg.Backend)
}

// Nop журнал, который ничего не хранит
type Nop struct{}

func (Nop) Append(context.Context, Record) error          { return nil }
func (Nop) Recent(context.Context, int) ([]Record, error) { return nil, nil }
func (Nop) Close() error                                  { return nil }
