package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contribook/audit"
	"contribook/chain"
	"contribook/db"
	"contribook/errors"
	"contribook/jsonx"
	"contribook/reputation"
	"contribook/store"
)

type exportFixture struct {
	ledger   *store.GenericLedgerStore
	engine   *reputation.Engine
	exporter *Exporter
	provider db.IterableProvider
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	provider := db.NewMemoryProvider()

	ledger, err := store.NewGenericLedgerStore(provider)
	require.NoError(t, err)
	verifications, err := store.NewGenericVerificationStore(provider)
	require.NoError(t, err)
	scores, err := store.NewScoreStore(provider)
	require.NoError(t, err)

	engine := reputation.NewEngine(ledger, verifications, scores, reputation.DefaultWeights())
	exporter := NewExporter(ledger, engine, audit.NewAuditor(ledger))

	return &exportFixture{ledger: ledger, engine: engine, exporter: exporter, provider: provider}
}

func (f *exportFixture) seed(t *testing.T) {
	t.Helper()
	for i, contributor := range []string{"alice", "bob", "alice"} {
		_, err := f.ledger.Append(
			"team-a",
			chain.EventPayload{Kind: chain.EventCreated, ActorID: contributor},
			string(rune('a'+i)),
			contributor,
			"h",
			0,
			1,
		)
		require.NoError(t, err)
	}
	_, err := f.engine.Recompute("team-a", "alice")
	require.NoError(t, err)
	_, err = f.engine.Recompute("team-a", "bob")
	require.NoError(t, err)
}

func TestExportArchiveContents(t *testing.T) {
	f := newExportFixture(t)
	f.seed(t)

	var buf bytes.Buffer
	require.NoError(t, f.exporter.Export("team-a", &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	entries := make(map[string][]byte)
	for _, file := range zr.File {
		rc, err := file.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		entries[file.Name] = data
	}

	require.Contains(t, entries, "team_info.json")
	require.Contains(t, entries, "chain.json")
	require.Contains(t, entries, "leaderboard.json")
	require.Contains(t, entries, "integrity.json")

	var info TeamInfo
	require.NoError(t, jsonx.Unmarshal(entries["team_info.json"], &info))
	assert.Equal(t, "team-a", info.TeamID)
	assert.Equal(t, uint64(4), info.ChainLength)
	assert.False(t, info.Frozen)

	var blocks []*chain.Block
	require.NoError(t, jsonx.Unmarshal(entries["chain.json"], &blocks))
	require.Len(t, blocks, 4)
	assert.True(t, blocks[0].IsGenesis())

	var result audit.ValidationResult
	require.NoError(t, jsonx.Unmarshal(entries["integrity.json"], &result))
	assert.True(t, result.Valid)
}

func TestExportRefusesTamperedChain(t *testing.T) {
	f := newExportFixture(t)
	f.seed(t)

	page, err := f.ledger.GetChain("team-a", 1, 1)
	require.NoError(t, err)
	page[0].ReputationScore = 500
	data, err := jsonx.Marshal(page[0])
	require.NoError(t, err)
	require.NoError(t, f.provider.Put(store.BlockKey("team-a", 1), data))

	var buf bytes.Buffer
	err = f.exporter.Export("team-a", &buf)
	assert.True(t, errors.Is(err, errors.ErrIntegrityViolation))
}
