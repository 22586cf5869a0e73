package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	coreindex "clawboard-backend/core/index"
)

// PGStore persists the snapshot as a single JSONB row per network identity.
// The UPSERT replaces the row in one statement, which gives the same
// no-partial-write guarantee the file driver gets from rename.
type PGStore struct {
	pool *pgxpool.Pool
	id   Identity
}

// NewPGStore connects and initializes the schema.
func NewPGStore(ctx context.Context, dsn string, id Identity) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PGStore{pool: pool, id: id}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS index_snapshots (
  factory_address TEXT NOT NULL,
  chain_id BIGINT NOT NULL,
  last_block BIGINT NOT NULL,
  snapshot JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (factory_address, chain_id)
);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Load reads the row for the configured network. No row, an unparseable
// snapshot, or a row whose embedded identity disagrees with the key all fall
// back to a fresh snapshot; only a query failure surfaces as an error.
func (s *PGStore) Load(ctx context.Context) (*coreindex.Snapshot, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM index_snapshots WHERE factory_address = $1 AND chain_id = $2`,
		strings.ToLower(s.id.FactoryAddress), s.id.ChainID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.id.fresh(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap coreindex.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.WithError(err).Warn("persisted snapshot corrupt, discarding and starting fresh")
		return s.id.fresh(), nil
	}
	if !snap.Matches(s.id.FactoryAddress, s.id.ChainID) {
		log.WithFields(log.Fields{
			"persisted_factory": snap.FactoryAddress,
			"persisted_chain":   snap.ChainID,
		}).Warn("persisted snapshot belongs to another network, discarding")
		return s.id.fresh(), nil
	}
	normalize(&snap)
	return &snap, nil
}

// Save upserts the snapshot row.
func (s *PGStore) Save(ctx context.Context, snap *coreindex.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO index_snapshots (factory_address, chain_id, last_block, snapshot, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (factory_address, chain_id)
DO UPDATE SET last_block = EXCLUDED.last_block, snapshot = EXCLUDED.snapshot, updated_at = now()`,
		snap.FactoryAddress, snap.ChainID, int64(snap.LastBlock), data)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}
