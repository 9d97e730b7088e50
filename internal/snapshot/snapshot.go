package snapshot

import (
	"context"

	"bakerybms/client/internal/domain"
)

// Key is the stable name the ledger snapshot is stored under across all
// backing stores.
const Key = "bms-storage"

// Store persists the full ledger snapshot as a single named record.
type Store interface {
	Save(ctx context.Context, snap domain.Snapshot) error
	Load(ctx context.Context) (*domain.Snapshot, bool, error)
}

// Noop discards saves and never finds a snapshot; used when persistence is
// disabled.
type Noop struct{}

func (Noop) Save(_ context.Context, _ domain.Snapshot) error { return nil }

func (Noop) Load(_ context.Context) (*domain.Snapshot, bool, error) { return nil, false, nil }
