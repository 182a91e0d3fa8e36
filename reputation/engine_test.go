package reputation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contribook/chain"
	"contribook/db"
	"contribook/store"
	"contribook/types"
)

type testFixture struct {
	ledger        *store.GenericLedgerStore
	verifications store.VerificationStore
	scores        *store.ScoreStore
	engine        *Engine
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	provider := db.NewMemoryProvider()

	ledger, err := store.NewGenericLedgerStore(provider)
	require.NoError(t, err)
	verifications, err := store.NewGenericVerificationStore(provider)
	require.NoError(t, err)
	scores, err := store.NewScoreStore(provider)
	require.NoError(t, err)

	return &testFixture{
		ledger:        ledger,
		verifications: verifications,
		scores:        scores,
		engine:        NewEngine(ledger, verifications, scores, DefaultWeights()),
	}
}

func (f *testFixture) submit(t *testing.T, teamID, contributionID, contributorID string) {
	t.Helper()
	_, err := f.ledger.Append(
		teamID,
		chain.EventPayload{Kind: chain.EventCreated, ActorID: contributorID},
		contributionID,
		contributorID,
		"hash-"+contributionID,
		0,
		0,
	)
	require.NoError(t, err)
}

func (f *testFixture) record(t *testing.T, contributionID, verifierID string, role types.Role, action types.Action) {
	t.Helper()
	won, err := f.verifications.Put(&types.VerificationRecord{
		ContributionID: contributionID,
		VerifierID:     verifierID,
		VerifierRole:   role,
		Action:         action,
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, won)
}

func TestScoreProgression(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	// One submission.
	score, err := f.engine.Compute("team-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), score.Score)

	// A single peer verification stays below the threshold.
	f.record(t, "c1", "bob", types.RoleMember, types.ActionVerified)
	score, err = f.engine.Compute("team-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), score.Score)

	// The second distinct peer crosses it: 1 + 3.
	f.record(t, "c1", "carol", types.RoleMember, types.ActionVerified)
	score, err = f.engine.Compute("team-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(4), score.Score)

	// Instructor verification: 4 + 5.
	f.record(t, "c1", "prof", types.RoleInstructor, types.ActionVerified)
	score, err = f.engine.Compute("team-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(9), score.Score)

	// One flag: 9 - 2.
	f.record(t, "c1", "dave", types.RoleMember, types.ActionFlagged)
	score, err = f.engine.Compute("team-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), score.Score)

	assert.Equal(t, uint64(1), score.Breakdown.TotalContributions)
	assert.Equal(t, uint64(1), score.Breakdown.PeerVerified)
	assert.Equal(t, uint64(1), score.Breakdown.InstructorVerified)
	assert.Equal(t, uint64(1), score.Breakdown.Flagged)
}

func TestInstructorVerificationDoesNotCountAsPeer(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	f.record(t, "c1", "prof", types.RoleInstructor, types.ActionVerified)
	f.record(t, "c1", "bob", types.RoleMember, types.ActionVerified)

	// One peer plus one instructor: instructor bonus applies, peer bonus
	// still needs a second distinct teammate.
	score, err := f.engine.Compute("team-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(6), score.Score)
	assert.Equal(t, uint64(0), score.Breakdown.PeerVerified)
	assert.Equal(t, uint64(1), score.Breakdown.InstructorVerified)
}

func TestBucketsCountOncePerContribution(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	for _, peer := range []string{"bob", "carol", "dave", "erin"} {
		f.record(t, "c1", peer, types.RoleMember, types.ActionVerified)
	}
	f.record(t, "c1", "prof", types.RoleInstructor, types.ActionVerified)
	f.record(t, "c1", "prof2", types.RoleManager, types.ActionVerified)
	f.record(t, "c1", "frank", types.RoleMember, types.ActionFlagged)
	f.record(t, "c1", "grace", types.RoleMember, types.ActionFlagged)

	// 1 submit + 3 peer + 5 instructor - 2 flag, extra actions change nothing.
	score, err := f.engine.Compute("team-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), score.Score)
}

func TestScoreFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	f.record(t, "c1", "bob", types.RoleMember, types.ActionFlagged)

	// 1 - 2 floors at 0.
	score, err := f.engine.Compute("team-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), score.Score)
}

func TestRecomputeIdempotent(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "team-a", "c1", "alice")
	f.record(t, "c1", "bob", types.RoleMember, types.ActionVerified)
	f.record(t, "c1", "carol", types.RoleMember, types.ActionVerified)

	first, err := f.engine.Recompute("team-a", "alice")
	require.NoError(t, err)
	second, err := f.engine.Recompute("team-a", "alice")
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Breakdown, second.Breakdown)

	stored, err := f.scores.Get("team-a", "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, second.Score, stored.Score)
}

func TestComputeUnknownTeam(t *testing.T) {
	f := newFixture(t)

	score, err := f.engine.Compute("nobody", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), score.Score)
	assert.Equal(t, uint64(0), score.Breakdown.TotalContributions)
}

func TestLeaderboardOrdering(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "team-a", "c1", "alice")
	f.submit(t, "team-a", "c2", "bob")
	f.submit(t, "team-a", "c3", "bob")

	_, err := f.engine.Recompute("team-a", "alice")
	require.NoError(t, err)
	_, err = f.engine.Recompute("team-a", "bob")
	require.NoError(t, err)

	board, err := f.engine.Leaderboard("team-a")
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].UserID)
	assert.Equal(t, int64(2), board[0].Score)
	assert.Equal(t, "alice", board[1].UserID)
	assert.Equal(t, int64(1), board[1].Score)
}
