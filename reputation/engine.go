package reputation

import (
	"sort"
	"time"

	"contribook/chain"
	"contribook/errors"
	"contribook/logx"
	"contribook/monitoring"
	"contribook/store"
	"contribook/types"
)

// Weights are the per-bucket contribution values of the scoring formula
type Weights struct {
	Submit             int64
	PeerVerified       int64
	InstructorVerified int64
	FlagPenalty        int64
	PeerThreshold      int
}

// DefaultWeights returns the stock scoring formula:
// +1 per submission, +3 once a contribution has two distinct teammate
// verifications, +5 once an instructor or manager verified it, -2 once it
// has been flagged.
func DefaultWeights() Weights {
	return Weights{
		Submit:             1,
		PeerVerified:       3,
		InstructorVerified: 5,
		FlagPenalty:        -2,
		PeerThreshold:      2,
	}
}

const chainPageSize = 256

// Engine derives reputation scores from the chain and the verification
// records. It never mutates blocks; scores are a materialized view.
type Engine struct {
	ledger        store.LedgerStore
	verifications store.VerificationStore
	scores        *store.ScoreStore
	weights       Weights
}

// NewEngine creates a reputation engine over the given stores
func NewEngine(ledger store.LedgerStore, verifications store.VerificationStore, scores *store.ScoreStore, weights Weights) *Engine {
	return &Engine{
		ledger:        ledger,
		verifications: verifications,
		scores:        scores,
		weights:       weights,
	}
}

// Weights returns the engine's scoring weights
func (e *Engine) Weights() Weights {
	return e.weights
}

// Compute derives the score of one user in one team without persisting it.
// Pure with respect to the score store: calling it twice with no new ledger
// events yields the same result.
func (e *Engine) Compute(teamID, userID string) (*types.ReputationScore, error) {
	contributionIDs, err := e.authoredContributions(teamID, userID)
	if err != nil {
		return nil, err
	}

	breakdown := types.ScoreBreakdown{}
	for _, cid := range contributionIDs {
		breakdown.TotalContributions++

		records, err := e.verifications.ListByContribution(cid)
		if err != nil {
			return nil, err
		}

		peerVerifiers := make(map[string]struct{})
		instructorVerified := false
		flagged := false
		for _, rec := range records {
			if rec.VerifierID == userID {
				continue // the coordinator rejects self-verification; skip stray records
			}
			switch rec.Action {
			case types.ActionVerified:
				if rec.VerifierRole.Elevated() {
					instructorVerified = true
				} else {
					peerVerifiers[rec.VerifierID] = struct{}{}
				}
			case types.ActionFlagged:
				flagged = true
			}
		}

		// Each contribution counts at most once per bucket no matter how many
		// verifications or flags pile up beyond the threshold.
		if len(peerVerifiers) >= e.weights.PeerThreshold {
			breakdown.PeerVerified++
		}
		if instructorVerified {
			breakdown.InstructorVerified++
		}
		if flagged {
			breakdown.Flagged++
		}
	}

	score := e.weights.Submit*int64(breakdown.TotalContributions) +
		e.weights.PeerVerified*int64(breakdown.PeerVerified) +
		e.weights.InstructorVerified*int64(breakdown.InstructorVerified) +
		e.weights.FlagPenalty*int64(breakdown.Flagged)
	if score < 0 {
		score = 0
	}

	return &types.ReputationScore{
		TeamID:    teamID,
		UserID:    userID,
		Score:     score,
		Breakdown: breakdown,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Recompute derives the score and refreshes the materialized view.
// Idempotent: with no intervening ledger changes the stored score only moves
// its UpdatedAt stamp.
func (e *Engine) Recompute(teamID, userID string) (*types.ReputationScore, error) {
	start := time.Now()

	score, err := e.Compute(teamID, userID)
	if err != nil {
		return nil, err
	}

	if err := e.scores.Put(score); err != nil {
		return nil, err
	}

	monitoring.RecordRecomputeDuration(time.Since(start))
	logx.Debug("REPUTATION", "Recomputed score | team=", teamID, " user=", userID, " score=", score.Score)
	return score, nil
}

// Score returns the materialized score, computing it on first access
func (e *Engine) Score(teamID, userID string) (*types.ReputationScore, error) {
	stored, err := e.scores.Get(teamID, userID)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}
	return e.Recompute(teamID, userID)
}

// Leaderboard returns the team's materialized scores sorted descending.
// Ties break on user id for a stable order.
func (e *Engine) Leaderboard(teamID string) ([]*types.ReputationScore, error) {
	scores, err := e.scores.ListByTeam(teamID)
	if err != nil {
		return nil, err
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].UserID < scores[j].UserID
	})
	return scores, nil
}

// authoredContributions walks the chain and collects the contribution refs
// created by one user, deduplicated in first-seen order
func (e *Engine) authoredContributions(teamID, userID string) ([]string, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0, 16)
	var cursor uint64

	for {
		page, err := e.ledger.GetChain(teamID, cursor, chainPageSize)
		if err != nil {
			if errors.Is(err, errors.ErrTeamNotFound) {
				return ids, nil // no chain yet means no contributions
			}
			return nil, err
		}

		for _, b := range page {
			if b.Event.Kind != chain.EventCreated || b.ContributorID != userID {
				continue
			}
			if _, ok := seen[b.ContributionID]; ok {
				continue
			}
			seen[b.ContributionID] = struct{}{}
			ids = append(ids, b.ContributionID)
		}

		if len(page) < chainPageSize {
			return ids, nil
		}
		cursor = page[len(page)-1].Sequence + 1
	}
}
