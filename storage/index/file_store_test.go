package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreindex "clawboard-backend/core/index"
)

func testIdentity() Identity {
	return Identity{FactoryAddress: "0xFaC7012345", ChainID: 8453, DeployBlock: 42}
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "index.json"), testIdentity())

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snap.LastBlock, "fresh snapshot starts at deploy block")
	assert.Equal(t, "0xfac7012345", snap.FactoryAddress)
	assert.NotNil(t, snap.Bounties)
}

func TestFileStoreRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	store := NewFileStore(path, testIdentity())
	ctx := context.Background()

	snap := testIdentity().fresh()
	snap.LastBlock = 120
	snap.Bounties["0xb1"] = &coreindex.BountyRecord{
		Address: "0xb1",
		Poster:  "0xp",
		Status:  coreindex.BountyStatusOpen,
		Amount:  "123456789012345678901234567890",
		Token:   "0xt",
	}
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), got.LastBlock)
	require.Contains(t, got.Bounties, "0xb1")
	assert.Equal(t, "123456789012345678901234567890", got.Bounties["0xb1"].Amount)
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewFileStore(path, testIdentity())
	snap, err := store.Load(context.Background())
	require.NoError(t, err, "corruption is recovered from, not surfaced")
	assert.Equal(t, uint64(42), snap.LastBlock)
}

func TestFileStoreLoadIdentityMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	ctx := context.Background()

	other := Identity{FactoryAddress: "0xAAA", ChainID: 1, DeployBlock: 0}
	otherSnap := other.fresh()
	otherSnap.LastBlock = 900
	require.NoError(t, NewFileStore(path, other).Save(ctx, otherSnap))

	store := NewFileStore(path, Identity{FactoryAddress: "0xBBB", ChainID: 1, DeployBlock: 42})
	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snap.LastBlock, "foreign snapshot is discarded for a fresh one")
	assert.Equal(t, "0xbbb", snap.FactoryAddress)
}

func TestFileStoreSaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "index.json")
	store := NewFileStore(path, testIdentity())

	require.NoError(t, store.Save(context.Background(), testIdentity().fresh()))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	store := NewFileStore(path, testIdentity())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, testIdentity().fresh()))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.json", entries[0].Name())
}

func TestNormalizeBackfillsMaps(t *testing.T) {
	snap := &coreindex.Snapshot{
		Challenges: map[string]*coreindex.ChallengeRecord{
			"0xc1": {Address: "0xc1"},
		},
	}
	normalize(snap)
	assert.NotNil(t, snap.Bounties)
	assert.NotNil(t, snap.Agents)
	assert.NotNil(t, snap.Challenges["0xc1"].Submissions)
}
