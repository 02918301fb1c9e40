// Package testutil builds SQLite-backed message worlds for tests.
package testutil

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/store"
)

//go:embed fixtures/world.yaml
var defaultWorld []byte

// Users of the default world.
const (
	Hamlet   int64 = 10
	Othello  int64 = 11
	Iago     int64 = 12
	Cordelia int64 = 13
	Polonius int64 = 14
	Bot      int64 = 15
)

// World is a seeded store plus the realm the fixture is about.
type World struct {
	Store    *store.Store
	Realm    model.Realm
	Messages *Sequence
}

// DefaultWorld returns the fixture NewWorld loads.
func DefaultWorld() []byte {
	return bytes.Clone(defaultWorld)
}

// NewWorld creates a fresh SQLite store holding the default world, realm 1.
func NewWorld(t *testing.T) *World {
	t.Helper()
	return LoadWorld(t, defaultWorld, 1)
}

// LoadWorld creates a fresh SQLite store holding the YAML seed in data.
func LoadWorld(t *testing.T, data []byte, realmID int64) *World {
	t.Helper()

	seed, err := store.ParseSeed(data)
	if err != nil {
		t.Fatalf("store.ParseSeed() failed: %v", err)
	}

	s, err := store.Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.WriteSeed(ctx, seed); err != nil {
		t.Fatalf("WriteSeed() failed: %v", err)
	}
	realm, err := s.LoadRealm(ctx, realmID)
	if err != nil {
		t.Fatalf("LoadRealm(%d) failed: %v", realmID, err)
	}

	var last int64
	for _, m := range seed.Messages {
		last = max(last, m.ID)
	}
	return &World{Store: s, Realm: realm, Messages: NewSequence(last)}
}

// Viewer loads the viewer for userID.
func (w *World) Viewer(t *testing.T, userID int64) *model.Viewer {
	t.Helper()
	v, err := w.Store.LoadViewer(context.Background(), userID)
	if err != nil {
		t.Fatalf("LoadViewer(%d) failed: %v", userID, err)
	}
	return v
}

// Send appends n messages from sender to recipient, each received by the
// receivers with no flags set. It returns the new ids in order.
func (w *World) Send(t *testing.T, sender, recipient int64, topic string, n int, receivers ...int64) []int64 {
	t.Helper()

	ids := make([]int64, 0, n)
	msgs := make([]store.SeedMessage, 0, n)
	for i := range n {
		id := w.Messages.Next()
		ids = append(ids, id)

		receipts := make([]store.SeedReceipt, 0, len(receivers))
		for _, u := range receivers {
			receipts = append(receipts, store.SeedReceipt{UserID: u})
		}
		msgs = append(msgs, store.SeedMessage{
			ID:          id,
			SenderID:    sender,
			RecipientID: recipient,
			Topic:       topic,
			Content:     fmt.Sprintf("message %d of %d", i+1, n),
			Receipts:    receipts,
		})
	}
	if err := w.Store.WriteSeed(context.Background(), store.Seed{Messages: msgs}); err != nil {
		t.Fatalf("WriteSeed() failed: %v", err)
	}
	return ids
}
