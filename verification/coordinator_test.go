package verification

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contribook/chain"
	"contribook/db"
	"contribook/errors"
	"contribook/events"
	"contribook/reputation"
	"contribook/store"
	"contribook/types"
)

type coordFixture struct {
	ledger        *store.GenericLedgerStore
	contribs      *store.ContributionStore
	verifications store.VerificationStore
	engine        *reputation.Engine
	bus           *events.EventBus
	coordinator   *Coordinator
}

func newCoordFixture(t *testing.T) *coordFixture {
	t.Helper()
	provider := db.NewMemoryProvider()

	ledger, err := store.NewGenericLedgerStore(provider)
	require.NoError(t, err)
	contribs, err := store.NewContributionStore(provider)
	require.NoError(t, err)
	verifications, err := store.NewGenericVerificationStore(provider)
	require.NoError(t, err)
	scores, err := store.NewScoreStore(provider)
	require.NoError(t, err)

	engine := reputation.NewEngine(ledger, verifications, scores, reputation.DefaultWeights())
	bus := events.NewEventBus()
	coordinator := NewCoordinator(ledger, contribs, verifications, engine, bus, 0)

	return &coordFixture{
		ledger:        ledger,
		contribs:      contribs,
		verifications: verifications,
		engine:        engine,
		bus:           bus,
		coordinator:   coordinator,
	}
}

func (f *coordFixture) submit(t *testing.T, teamID, contributionID, contributorID string) *chain.Block {
	t.Helper()
	block, err := f.coordinator.Submit(teamID, contributionID, contributorID, types.ContributionGit, "work", "hash-"+contributionID)
	require.NoError(t, err)
	return block
}

func TestSubmitAppendsCreatedBlock(t *testing.T) {
	f := newCoordFixture(t)

	block := f.submit(t, "team-a", "c1", "alice")
	assert.Equal(t, chain.EventCreated, block.Event.Kind)
	assert.Equal(t, "alice", block.Event.ActorID)
	assert.Equal(t, int64(1), block.ReputationScore)

	meta, err := f.contribs.Get("c1")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "team-a", meta.TeamID)

	score, err := f.engine.Score("team-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), score.Score)
}

func TestSubmitGeneratesID(t *testing.T) {
	f := newCoordFixture(t)

	block, err := f.coordinator.Submit("team-a", "", "alice", types.ContributionDocument, "notes", "h")
	require.NoError(t, err)
	assert.NotEmpty(t, block.ContributionID)
}

func TestSubmitDuplicateRejected(t *testing.T) {
	f := newCoordFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	_, err := f.coordinator.Submit("team-a", "c1", "alice", types.ContributionGit, "again", "h")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidRequest, errors.CodeOf(err))
}

func TestSelfVerificationDenied(t *testing.T) {
	f := newCoordFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	_, err := f.coordinator.Verify("c1", "alice", types.RoleMember, "")
	assert.True(t, errors.Is(err, errors.ErrSelfVerificationDenied))

	_, err = f.coordinator.Flag("c1", "alice", "")
	assert.True(t, errors.Is(err, errors.ErrSelfVerificationDenied))
}

func TestAlreadyActed(t *testing.T) {
	f := newCoordFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	_, err := f.coordinator.Verify("c1", "bob", types.RoleMember, "")
	require.NoError(t, err)

	_, err = f.coordinator.Verify("c1", "bob", types.RoleMember, "")
	assert.True(t, errors.Is(err, errors.ErrAlreadyActed))

	// A verifier cannot switch to flagging either.
	_, err = f.coordinator.Flag("c1", "bob", "")
	assert.True(t, errors.Is(err, errors.ErrAlreadyActed))
}

func TestVerifyUnknownContribution(t *testing.T) {
	f := newCoordFixture(t)

	_, err := f.coordinator.Verify("nope", "bob", types.RoleMember, "")
	assert.True(t, errors.Is(err, errors.ErrContributionNotFound))
}

func TestVerifyAppendsBlockAndUpdatesScore(t *testing.T) {
	f := newCoordFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	tally, err := f.coordinator.Verify("c1", "bob", types.RoleMember, "looks good")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tally.VerificationCount)
	assert.Equal(t, int64(1), tally.ContributorScore)

	tally, err = f.coordinator.Verify("c1", "carol", types.RoleMember, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tally.VerificationCount)
	assert.Equal(t, int64(4), tally.ContributorScore)

	blocks, err := f.ledger.GetBlocksByContribution("team-a", "c1")
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, chain.EventVerified, blocks[1].Event.Kind)
	assert.Equal(t, "bob", blocks[1].Event.ActorID)
}

func TestInstructorVerify(t *testing.T) {
	f := newCoordFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	tally, err := f.coordinator.Verify("c1", "prof", types.RoleInstructor, "")
	require.NoError(t, err)
	assert.Equal(t, int64(6), tally.ContributorScore)

	blocks, err := f.ledger.GetBlocksByContribution("team-a", "c1")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, chain.EventInstructorVerified, blocks[1].Event.Kind)
}

func TestFlagAppliesPenalty(t *testing.T) {
	f := newCoordFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	tally, err := f.coordinator.Flag("c1", "bob", "suspicious")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tally.FlagCount)
	assert.Equal(t, int64(0), tally.ContributorScore)

	blocks, err := f.ledger.GetBlocksByContribution("team-a", "c1")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, chain.EventFlagged, blocks[1].Event.Kind)
}

func TestVerifyOnFrozenTeam(t *testing.T) {
	f := newCoordFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	require.NoError(t, f.coordinator.Freeze("team-a"))

	_, err := f.coordinator.Verify("c1", "bob", types.RoleMember, "")
	assert.True(t, errors.Is(err, errors.ErrTeamFrozen))

	// The rejected action leaves no record behind.
	rec, err := f.verifications.Get("c1", "bob")
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, f.coordinator.Unfreeze("team-a"))
	_, err = f.coordinator.Verify("c1", "bob", types.RoleMember, "")
	require.NoError(t, err)
}

func TestSubmitOnFrozenTeam(t *testing.T) {
	f := newCoordFixture(t)
	f.submit(t, "team-a", "c1", "alice")
	require.NoError(t, f.coordinator.Freeze("team-a"))

	_, err := f.coordinator.Submit("team-a", "c2", "bob", types.ContributionGit, "late", "h")
	assert.True(t, errors.Is(err, errors.ErrChainFrozen))

	// The index entry was rolled back with the rejected append.
	meta, err := f.contribs.Get("c2")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestConcurrentVerifiersOneBlockEach(t *testing.T) {
	f := newCoordFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	verifiers := []string{"bob", "carol", "dave", "erin", "frank"}
	var wg sync.WaitGroup
	for _, v := range verifiers {
		wg.Add(1)
		go func(verifier string) {
			defer wg.Done()
			_, err := f.coordinator.Verify("c1", verifier, types.RoleMember, "")
			assert.NoError(t, err)
		}(v)
	}
	wg.Wait()

	blocks, err := f.ledger.GetBlocksByContribution("team-a", "c1")
	require.NoError(t, err)
	assert.Len(t, blocks, len(verifiers)+1)

	full, err := f.ledger.GetChain("team-a", 0, 100)
	require.NoError(t, err)
	for i := 1; i < len(full); i++ {
		assert.Equal(t, full[i-1].BlockHash, full[i].PrevHash)
		assert.Equal(t, full[i].BlockHash, full[i].ComputeHash())
	}

	score, err := f.engine.Score("team-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(4), score.Score)
}

func TestTally(t *testing.T) {
	f := newCoordFixture(t)
	f.submit(t, "team-a", "c1", "alice")

	_, err := f.coordinator.Verify("c1", "bob", types.RoleMember, "")
	require.NoError(t, err)
	_, err = f.coordinator.Flag("c1", "carol", "")
	require.NoError(t, err)

	tally, err := f.coordinator.Tally("c1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tally.VerificationCount)
	assert.Equal(t, uint64(1), tally.FlagCount)
}

func TestVerifyPublishesEvents(t *testing.T) {
	f := newCoordFixture(t)
	_, ch := f.bus.Subscribe()

	f.submit(t, "team-a", "c1", "alice")

	_, err := f.coordinator.Verify("c1", "bob", types.RoleMember, "")
	require.NoError(t, err)

	var sawVerified bool
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			if ev.Type() == events.EventContributionVerified {
				sawVerified = true
			}
		default:
		}
	}
	assert.True(t, sawVerified)
}
