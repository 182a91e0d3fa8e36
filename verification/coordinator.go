package verification

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"contribook/chain"
	"contribook/errors"
	"contribook/events"
	"contribook/logx"
	"contribook/monitoring"
	"contribook/reputation"
	"contribook/store"
	"contribook/types"
)

// DefaultAppendRetries bounds the read-tip/compute/append cycle before a
// conflict is surfaced to the caller
const DefaultAppendRetries = 3

// Coordinator is the sole writer path into the ledger. It enforces who may
// verify or flag, prevents duplicate actions, and couples every accepted
// action to a ledger append plus an eager reputation recompute.
//
// Per (contribution, acting user) pair the state machine is terminal:
// NoAction -> Verified or NoAction -> Flagged, never both, no retraction.
type Coordinator struct {
	ledger        store.LedgerStore
	contribs      *store.ContributionStore
	verifications store.VerificationStore
	engine        *reputation.Engine
	bus           *events.EventBus
	appendRetries int
	teamLocks     sync.Map // teamID -> *sync.Mutex
}

// NewCoordinator creates a coordinator over the given stores
func NewCoordinator(
	ledger store.LedgerStore,
	contribs *store.ContributionStore,
	verifications store.VerificationStore,
	engine *reputation.Engine,
	bus *events.EventBus,
	appendRetries int,
) *Coordinator {
	if appendRetries <= 0 {
		appendRetries = DefaultAppendRetries
	}
	return &Coordinator{
		ledger:        ledger,
		contribs:      contribs,
		verifications: verifications,
		engine:        engine,
		bus:           bus,
		appendRetries: appendRetries,
	}
}

func (c *Coordinator) teamLock(teamID string) *sync.Mutex {
	lock, _ := c.teamLocks.LoadOrStore(teamID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Submit records a freshly stored contribution on the team ledger. The
// content hash arrives precomputed from the storage layer; it is never
// re-derived here. An empty contributionID gets a fresh UUID.
func (c *Coordinator) Submit(
	teamID, contributionID, contributorID string,
	contributionType types.ContributionType,
	title, contentHash string,
) (*chain.Block, error) {
	if teamID == "" || contributorID == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidRequest, "team id and contributor id are required")
	}
	if contributionID == "" {
		contributionID = uuid.NewString()
	}

	lock := c.teamLock(teamID)
	lock.Lock()
	defer lock.Unlock()

	exists, err := c.contribs.Has(contributionID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewError(errors.ErrCodeInvalidRequest, "contribution is already recorded")
	}

	meta := &types.ContributionMeta{
		ID:            contributionID,
		TeamID:        teamID,
		ContributorID: contributorID,
		Type:          contributionType,
		ContentHash:   contentHash,
		Title:         title,
		SubmittedAt:   time.Now().UTC(),
	}
	if err := c.contribs.Put(meta); err != nil {
		return nil, err
	}

	pre, err := c.engine.Compute(teamID, contributorID)
	if err != nil {
		c.rollbackContribution(contributionID)
		return nil, err
	}

	block, err := c.appendWithRetry(
		teamID,
		chain.EventPayload{Kind: chain.EventCreated, ActorID: contributorID},
		contributionID,
		contributorID,
		contentHash,
		0,
		pre.Score+c.engine.Weights().Submit,
	)
	if err != nil {
		c.rollbackContribution(contributionID)
		return nil, err
	}

	if _, err := c.engine.Recompute(teamID, contributorID); err != nil {
		return nil, err
	}

	c.publish(events.NewBlockAppended(teamID, block.Sequence, hashHex(block), contributionID))
	return block, nil
}

// Verify records one teammate's confirmation of a contribution
func (c *Coordinator) Verify(contributionID, verifierID string, role types.Role, comment string) (*types.Tally, error) {
	kind := chain.EventVerified
	if role.Elevated() {
		kind = chain.EventInstructorVerified
	}
	return c.act(contributionID, verifierID, role, types.ActionVerified, kind, comment)
}

// Flag records one teammate's objection to a contribution. Flags reduce the
// author's score through the reputation recompute.
func (c *Coordinator) Flag(contributionID, flaggerID string, reason string) (*types.Tally, error) {
	return c.act(contributionID, flaggerID, types.RoleMember, types.ActionFlagged, chain.EventFlagged, reason)
}

// act runs the shared verify/flag path: precondition checks, record write,
// ledger append and eager recompute, serialized per team so a racing freeze
// resolves to exactly one of success-before-freeze or TeamFrozen.
func (c *Coordinator) act(
	contributionID, actorID string,
	role types.Role,
	action types.Action,
	kind chain.EventKind,
	comment string,
) (*types.Tally, error) {
	if contributionID == "" || actorID == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidRequest, "contribution id and actor id are required")
	}

	meta, err := c.contribs.Get(contributionID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errors.ErrContributionNotFound
	}

	if meta.ContributorID == actorID {
		return nil, errors.ErrSelfVerificationDenied
	}

	lock := c.teamLock(meta.TeamID)
	lock.Lock()
	defer lock.Unlock()

	frozen, err := c.ledger.IsFrozen(meta.TeamID)
	if err != nil {
		return nil, err
	}
	if frozen {
		return nil, errors.ErrTeamFrozen
	}

	rec := &types.VerificationRecord{
		ContributionID: contributionID,
		VerifierID:     actorID,
		VerifierRole:   role,
		Action:         action,
		Comment:        comment,
		CreatedAt:      time.Now().UTC(),
	}
	won, err := c.verifications.Put(rec)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, errors.ErrAlreadyActed
	}

	records, err := c.verifications.ListByContribution(contributionID)
	if err != nil {
		c.rollbackRecord(contributionID, actorID)
		return nil, err
	}
	verificationCount, flagCount := countActions(records)

	pre, err := c.engine.Compute(meta.TeamID, meta.ContributorID)
	if err != nil {
		c.rollbackRecord(contributionID, actorID)
		return nil, err
	}

	_, err = c.appendWithRetry(
		meta.TeamID,
		chain.EventPayload{Kind: kind, ActorID: actorID},
		contributionID,
		meta.ContributorID,
		meta.ContentHash,
		verificationCount,
		pre.Score,
	)
	if err != nil {
		// The record must not outlive a rejected append: a verify racing a
		// freeze resolves to a clean TeamFrozen, never a partial state.
		c.rollbackRecord(contributionID, actorID)
		if errors.Is(err, errors.ErrChainFrozen) {
			return nil, errors.ErrTeamFrozen
		}
		return nil, err
	}

	score, err := c.engine.Recompute(meta.TeamID, meta.ContributorID)
	if err != nil {
		return nil, err
	}

	monitoring.RecordVerificationAction(string(kind))
	switch action {
	case types.ActionVerified:
		c.publish(events.NewContributionVerified(meta.TeamID, contributionID, actorID, role.Elevated()))
	case types.ActionFlagged:
		c.publish(events.NewContributionFlagged(meta.TeamID, contributionID, actorID))
	}

	return &types.Tally{
		ContributionID:    contributionID,
		VerificationCount: verificationCount,
		FlagCount:         flagCount,
		ContributorScore:  score.Score,
	}, nil
}

// Tally reports the current verification state of a contribution
func (c *Coordinator) Tally(contributionID string) (*types.Tally, error) {
	meta, err := c.contribs.Get(contributionID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errors.ErrContributionNotFound
	}

	records, err := c.verifications.ListByContribution(contributionID)
	if err != nil {
		return nil, err
	}
	verificationCount, flagCount := countActions(records)

	score, err := c.engine.Score(meta.TeamID, meta.ContributorID)
	if err != nil {
		return nil, err
	}

	return &types.Tally{
		ContributionID:    contributionID,
		VerificationCount: verificationCount,
		FlagCount:         flagCount,
		ContributorScore:  score.Score,
	}, nil
}

// Freeze stops all further ledger activity for a team
func (c *Coordinator) Freeze(teamID string) error {
	if err := c.ledger.Freeze(teamID); err != nil {
		return err
	}
	c.publish(events.NewTeamFrozen(teamID))
	return nil
}

// Unfreeze re-opens a team ledger
func (c *Coordinator) Unfreeze(teamID string) error {
	return c.ledger.Unfreeze(teamID)
}

// appendWithRetry retries the read-tip/compute/append cycle a bounded number
// of times before surfacing the conflict as transient
func (c *Coordinator) appendWithRetry(
	teamID string,
	event chain.EventPayload,
	contributionID, contributorID, contentHash string,
	verificationCount uint64,
	scoreSnapshot int64,
) (*chain.Block, error) {
	var lastErr error
	for attempt := 0; attempt < c.appendRetries; attempt++ {
		block, err := c.ledger.Append(teamID, event, contributionID, contributorID, contentHash, verificationCount, scoreSnapshot)
		if err == nil {
			return block, nil
		}
		if !errors.Is(err, errors.ErrChainConflict) {
			return nil, err
		}
		lastErr = err
		logx.Warn("COORDINATOR", "Append conflict, retrying | team=", teamID, " attempt=", attempt+1)
	}
	return nil, lastErr
}

func (c *Coordinator) rollbackRecord(contributionID, actorID string) {
	if err := c.verifications.Delete(contributionID, actorID); err != nil {
		logx.Error("COORDINATOR", "Failed to roll back verification record | contribution=", contributionID, " actor=", actorID, " error: ", err)
	}
}

func (c *Coordinator) rollbackContribution(contributionID string) {
	if err := c.contribs.Delete(contributionID); err != nil {
		logx.Error("COORDINATOR", "Failed to roll back contribution index | contribution=", contributionID, " error: ", err)
	}
}

func (c *Coordinator) publish(event events.LedgerEvent) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(event)
}

func countActions(records []*types.VerificationRecord) (verificationCount, flagCount uint64) {
	for _, rec := range records {
		switch rec.Action {
		case types.ActionVerified:
			verificationCount++
		case types.ActionFlagged:
			flagCount++
		}
	}
	return verificationCount, flagCount
}

func hashHex(b *chain.Block) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, v := range b.BlockHash {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0x0f]
	}
	return string(out)
}
