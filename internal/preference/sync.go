package preference

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/annel0/treefell/internal/logging"
)

// DefaultSyncSubject тема NATS для рассылки изменений настроек
const DefaultSyncSubject = "treefell.preferences"

// Update изменение настройки игрока, рассылаемое между узлами
type Update struct {
	Player    uuid.UUID `json:"player"`
	Enabled   bool      `json:"enabled"`
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateHandler применяет изменение, пришедшее с другого узла
type UpdateHandler func(u Update)

// SyncConfig настройки синхронизации через NATS
type SyncConfig struct {
	URL           string
	Subject       string
	NodeID        string
	MaxReconnects int
	ReconnectWait time.Duration
}

// Sync рассылает изменения настроек между узлами через NATS Pub/Sub.
// Собственные сообщения узла игнорируются по NodeID.
type Sync struct {
	conn    *nats.Conn
	subject string
	nodeID  string

	mu  sync.Mutex
	sub *nats.Subscription

	published atomic.Int64
	received  atomic.Int64
	errors    atomic.Int64
}

// NewSync подключается к NATS
func NewSync(cfg SyncConfig) (*Sync, error) {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSyncSubject
	}
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 10
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	log := logging.GetComponentLogger("preference")
	conn, err := nats.Connect(cfg.URL,
		nats.Name("treefell-preferences"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info("Синхронизация настроек: %s (subject: %s, node: %s)", cfg.URL, cfg.Subject, cfg.NodeID)
	return &Sync{conn: conn, subject: cfg.Subject, nodeID: cfg.NodeID}, nil
}

// NodeID идентификатор этого узла
func (s *Sync) NodeID() string { return s.nodeID }

// Publish рассылает изменение настройки
func (s *Sync) Publish(player uuid.UUID, enabled bool) error {
	data, err := json.Marshal(Update{Player: player, Enabled: enabled, NodeID: s.nodeID, Timestamp: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		s.errors.Add(1)
		return fmt.Errorf("publish preference: %w", err)
	}
	s.published.Add(1)
	return nil
}

// Subscribe начинает получать изменения других узлов
func (s *Sync) Subscribe(h UpdateHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return fmt.Errorf("preference sync: already subscribed")
	}
	sub, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		s.handle(msg.Data, h)
	})
	if err != nil {
		return fmt.Errorf("subscribe preferences: %w", err)
	}
	s.sub = sub
	return nil
}

// handle разбирает сообщение; свои сообщения и мусор отбрасываются
func (s *Sync) handle(data []byte, h UpdateHandler) bool {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		s.errors.Add(1)
		logging.GetComponentLogger("preference").Warn("Некорректное сообщение синхронизации: %v", err)
		return false
	}
	if u.NodeID == s.nodeID || u.Player == uuid.Nil {
		return false
	}
	s.received.Add(1)
	h(u)
	return true
}

// Metrics возвращает счётчики синхронизации
func (s *Sync) Metrics() map[string]int64 {
	return map[string]int64{
		"published": s.published.Load(),
		"received":  s.received.Load(),
		"errors":    s.errors.Load(),
	}
}

// Close отписывается и закрывает соединение
func (s *Sync) Close() error {
	s.mu.Lock()
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
		s.sub = nil
	}
	s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

// Conn возвращает соединение NATS
func (s *Sync) Conn() *nats.Conn { return s.conn }
