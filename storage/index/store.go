package index

import (
	"context"

	coreindex "clawboard-backend/core/index"
)

// Store persists one index domain's snapshot. Load fails open: corruption or
// a network-identity mismatch yields a fresh snapshot seeded at the deploy
// block, never an error about the bad data. Errors from Load and Save are
// transport-level only (the backing database being unreachable); the file
// driver never returns one from Load.
type Store interface {
	Load(ctx context.Context) (*coreindex.Snapshot, error)
	Save(ctx context.Context, snap *coreindex.Snapshot) error
	Close()
}

// Identity pins a store to the network it serves so stale persisted state
// from another deployment is discarded on load.
type Identity struct {
	FactoryAddress string
	ChainID        int64
	DeployBlock    uint64
}

func (id Identity) fresh() *coreindex.Snapshot {
	return coreindex.NewSnapshot(id.FactoryAddress, id.ChainID, id.DeployBlock)
}
