package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	coreindex "clawboard-backend/core/index"
)

// FileStore keeps the snapshot in a single JSON document. Saves write a
// sibling temp file and rename it over the target so a crashed write never
// leaves a partial document for the next Load.
type FileStore struct {
	path string
	id   Identity
}

// NewFileStore builds a file-backed store; the parent directory is created on
// first save.
func NewFileStore(path string, id Identity) *FileStore {
	return &FileStore{path: path, id: id}
}

// DefaultFilePath places the snapshot under the user's home directory, one
// file per chain.
func DefaultFilePath(chainID int64) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".clawboard", fmt.Sprintf("index-%d.json", chainID))
}

// Load reads the persisted snapshot. A missing file, unparseable content, or
// a factory/chain identity that no longer matches the configured network all
// fall back to a fresh snapshot seeded at the deployment block.
func (f *FileStore) Load(ctx context.Context) (*coreindex.Snapshot, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.WithError(err).WithField("path", f.path).Warn("index file unreadable, starting fresh")
		}
		return f.id.fresh(), nil
	}

	var snap coreindex.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.WithError(err).WithField("path", f.path).Warn("index file corrupt, discarding and starting fresh")
		return f.id.fresh(), nil
	}
	if !snap.Matches(f.id.FactoryAddress, f.id.ChainID) {
		log.WithFields(log.Fields{
			"persisted_factory": snap.FactoryAddress,
			"persisted_chain":   snap.ChainID,
			"configured_factory": f.id.FactoryAddress,
			"configured_chain":   f.id.ChainID,
		}).Warn("index file belongs to another network, discarding")
		return f.id.fresh(), nil
	}
	normalize(&snap)
	return &snap, nil
}

// Save atomically replaces the snapshot file.
func (f *FileStore) Save(ctx context.Context, snap *coreindex.Snapshot) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func (f *FileStore) Close() {}

// normalize backfills maps a hand-edited or older file may omit, so reducers
// never hit a nil map.
func normalize(snap *coreindex.Snapshot) {
	if snap.Bounties == nil {
		snap.Bounties = make(map[string]*coreindex.BountyRecord)
	}
	if snap.Challenges == nil {
		snap.Challenges = make(map[string]*coreindex.ChallengeRecord)
	}
	if snap.Agents == nil {
		snap.Agents = make(map[string]*coreindex.AgentRecord)
	}
	for _, c := range snap.Challenges {
		if c.Submissions == nil {
			c.Submissions = make(map[string]*coreindex.SubmissionRecord)
		}
	}
}
