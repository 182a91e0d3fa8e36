package store

import (
	"fmt"

	"contribook/db"
	"contribook/jsonx"
	"contribook/logx"
	"contribook/types"
)

// ScoreStore keeps the materialized reputation scores. The chain plus the
// verification records remain the source of truth; everything here can be
// rebuilt from scratch after corruption.
type ScoreStore struct {
	dbProvider db.IterableProvider
}

// NewScoreStore creates a new reputation score store
func NewScoreStore(dbProvider db.IterableProvider) (*ScoreStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &ScoreStore{dbProvider: dbProvider}, nil
}

func scoreKey(teamID, userID string) []byte {
	return []byte(PrefixScore + teamID + ":" + userID)
}

func scorePrefix(teamID string) []byte {
	return []byte(PrefixScore + teamID + ":")
}

// Put stores a materialized score
func (ss *ScoreStore) Put(score *types.ReputationScore) error {
	if score == nil {
		return fmt.Errorf("score cannot be nil")
	}

	data, err := jsonx.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}
	return ss.dbProvider.Put(scoreKey(score.TeamID, score.UserID), data)
}

// Get returns the materialized score for a (team, user) pair, nil when absent
func (ss *ScoreStore) Get(teamID, userID string) (*types.ReputationScore, error) {
	value, err := ss.dbProvider.Get(scoreKey(teamID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	if value == nil {
		return nil, nil
	}

	var score types.ReputationScore
	if err := jsonx.Unmarshal(value, &score); err != nil {
		return nil, fmt.Errorf("failed to unmarshal score: %w", err)
	}
	return &score, nil
}

// Delete removes a materialized score. Only used on team teardown.
func (ss *ScoreStore) Delete(teamID, userID string) error {
	return ss.dbProvider.Delete(scoreKey(teamID, userID))
}

// ListByTeam returns every materialized score of a team
func (ss *ScoreStore) ListByTeam(teamID string) ([]*types.ReputationScore, error) {
	scores := make([]*types.ReputationScore, 0, 16)

	err := ss.dbProvider.IteratePrefix(scorePrefix(teamID), func(key, value []byte) bool {
		var score types.ReputationScore
		if err := jsonx.Unmarshal(value, &score); err != nil {
			logx.Error("SCORE_STORE", "Failed to unmarshal score ", string(key), " error: ", err)
			return true
		}
		scores = append(scores, &score)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	return scores, nil
}
