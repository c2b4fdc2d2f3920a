package preference

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSync_HandleSkipsOwnNode(t *testing.T) {
	s := &Sync{nodeID: "node-a"}
	store := NewStore(true)
	apply := func(u Update) { store.Set(u.Player, u.Enabled) }

	player := uuid.New()
	own, _ := json.Marshal(Update{Player: player, Enabled: false, NodeID: "node-a"})
	assert.False(t, s.handle(own, apply), "Собственное сообщение игнорируется")
	assert.True(t, store.IsEnabled(player))

	other, _ := json.Marshal(Update{Player: player, Enabled: false, NodeID: "node-b", Timestamp: time.Now()})
	assert.True(t, s.handle(other, apply))
	assert.False(t, store.IsEnabled(player))

	assert.False(t, s.handle([]byte("{broken"), apply))
	nilPlayer, _ := json.Marshal(Update{NodeID: "node-b"})
	assert.False(t, s.handle(nilPlayer, apply))

	m := s.Metrics()
	assert.Equal(t, int64(1), m["received"])
	assert.Equal(t, int64(1), m["errors"])
}

func TestSync_RoundTripNATS(t *testing.T) {
	url := os.Getenv("TREEFELL_TEST_NATS")
	if url == "" {
		t.Skip("TREEFELL_TEST_NATS не задан")
	}
	subject := "treefell.test." + uuid.NewString()

	a, err := NewSync(SyncConfig{URL: url, Subject: subject, NodeID: "a"})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSync(SyncConfig{URL: url, Subject: subject, NodeID: "b"})
	require.NoError(t, err)
	defer b.Close()

	got := make(chan Update, 1)
	require.NoError(t, b.Subscribe(func(u Update) { got <- u }))
	require.Error(t, b.Subscribe(func(Update) {}), "Повторная подписка запрещена")

	player := uuid.New()
	require.NoError(t, b.Conn().Flush())
	require.NoError(t, a.Publish(player, false))

	select {
	case u := <-got:
		assert.Equal(t, player, u.Player)
		assert.False(t, u.Enabled)
		assert.Equal(t, "a", u.NodeID)
	case <-time.After(3 * time.Second):
		t.Fatal("сообщение не получено")
	}
}
