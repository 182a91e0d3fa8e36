package store

import (
	"fmt"

	"contribook/db"
	"contribook/jsonx"
	"contribook/types"
)

// ContributionStore indexes submitted contributions so the coordinator can
// resolve a contribution ref to its team, author and content hash
type ContributionStore struct {
	dbProvider db.DatabaseProvider
}

// NewContributionStore creates a new contribution index store
func NewContributionStore(dbProvider db.DatabaseProvider) (*ContributionStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &ContributionStore{dbProvider: dbProvider}, nil
}

func contributionKey(contributionID string) []byte {
	return []byte(PrefixContribution + contributionID)
}

// Put stores a contribution index entry
func (cs *ContributionStore) Put(meta *types.ContributionMeta) error {
	if meta == nil {
		return fmt.Errorf("contribution meta cannot be nil")
	}

	data, err := jsonx.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal contribution meta: %w", err)
	}
	return cs.dbProvider.Put(contributionKey(meta.ID), data)
}

// Get returns the index entry for a contribution, nil when unknown
func (cs *ContributionStore) Get(contributionID string) (*types.ContributionMeta, error) {
	value, err := cs.dbProvider.Get(contributionKey(contributionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get contribution meta: %w", err)
	}
	if value == nil {
		return nil, nil
	}

	var meta types.ContributionMeta
	if err := jsonx.Unmarshal(value, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contribution meta: %w", err)
	}
	return &meta, nil
}

// Has checks whether a contribution is already indexed
func (cs *ContributionStore) Has(contributionID string) (bool, error) {
	return cs.dbProvider.Has(contributionKey(contributionID))
}

// Delete removes an index entry. Only used to roll back an entry whose
// ledger append was rejected.
func (cs *ContributionStore) Delete(contributionID string) error {
	return cs.dbProvider.Delete(contributionKey(contributionID))
}
