package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"schoolattend/internal/ledger"
	"schoolattend/internal/registry"
)

// Snapshot is the whole-collection persistence format. The registry
// and ledger are replaced wholesale on load; no incremental change log
// is kept.
type Snapshot struct {
	Students []registry.Student `json:"students"`
	Teachers []registry.Teacher `json:"teachers"`
	Records  []ledger.Record    `json:"records"`
	SavedAt  time.Time          `json:"savedAt"`
}

// ErrNoSnapshot is returned when no snapshot has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

const snapshotKey = "schoolattend:snapshot"

// SnapshotStore persists snapshots as a single JSON value in Redis.
type SnapshotStore struct {
	client *redis.Client
}

// NewSnapshotStore creates a snapshot store over the redis client.
func NewSnapshotStore(r *Redis) *SnapshotStore {
	return &SnapshotStore{client: r.Client}
}

// Save writes the snapshot, replacing any previous one.
func (s *SnapshotStore) Save(ctx context.Context, snap Snapshot) error {
	snap.SavedAt = time.Now().UTC()
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, snapshotKey, data, 0).Err()
}

// Load reads the last saved snapshot.
func (s *SnapshotStore) Load(ctx context.Context) (Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
