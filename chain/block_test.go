package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contribook/jsonx"
)

func TestComputeHashDeterministic(t *testing.T) {
	b := AssembleBlock(
		1,
		ZeroHash,
		"team-a",
		"contrib-1",
		"alice",
		"abc123",
		EventPayload{Kind: EventCreated, ActorID: "alice"},
		0,
		1,
	)

	assert.Equal(t, b.BlockHash, b.ComputeHash())
	assert.Equal(t, b.ComputeHash(), b.ComputeHash())
}

func TestComputeHashChangesWithFields(t *testing.T) {
	base := AssembleBlock(1, ZeroHash, "team-a", "contrib-1", "alice", "abc123", EventPayload{Kind: EventCreated, ActorID: "alice"}, 0, 1)

	tampered := *base
	tampered.ReputationScore = 99
	assert.NotEqual(t, base.BlockHash, tampered.ComputeHash())

	tampered = *base
	tampered.ContributorID = "mallory"
	assert.NotEqual(t, base.BlockHash, tampered.ComputeHash())

	tampered = *base
	tampered.Event.Kind = EventFlagged
	assert.NotEqual(t, base.BlockHash, tampered.ComputeHash())
}

func TestHashSurvivesJSONRoundTrip(t *testing.T) {
	b := AssembleBlock(
		7,
		[32]byte{1, 2, 3},
		"team-a",
		"contrib-1",
		"alice",
		"abc123",
		EventPayload{Kind: EventVerified, ActorID: "bob"},
		2,
		4,
	)

	data, err := jsonx.Marshal(b)
	require.NoError(t, err)

	var decoded Block
	require.NoError(t, jsonx.Unmarshal(data, &decoded))

	assert.Equal(t, b.BlockHash, decoded.BlockHash)
	assert.Equal(t, b.BlockHash, decoded.ComputeHash())
}

func TestGenesisBlock(t *testing.T) {
	g := GenesisBlock("team-a")

	assert.True(t, g.IsGenesis())
	assert.Equal(t, uint64(0), g.Sequence)
	assert.Equal(t, GenesisContributionRef, g.ContributionID)
	assert.Equal(t, ZeroHash, g.PrevHash)
	assert.Equal(t, g.BlockHash, g.ComputeHash())
	assert.WithinDuration(t, time.Now().UTC(), g.Timestamp, time.Minute)
}

func TestDistinctBlocksDistinctHashes(t *testing.T) {
	a := GenesisBlock("team-a")
	b := GenesisBlock("team-b")
	assert.NotEqual(t, a.BlockHash, b.BlockHash)
}
