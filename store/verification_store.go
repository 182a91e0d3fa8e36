package store

import (
	"fmt"

	"contribook/db"
	"contribook/jsonx"
	"contribook/logx"
	"contribook/types"
)

// VerificationStore persists the terminal (contribution, verifier) actions.
// At most one record may exist per pair; Put reports whether the write won.
type VerificationStore interface {
	// Put stores the record unless one already exists for the pair.
	// Returns false when a prior record blocked the write.
	Put(rec *types.VerificationRecord) (bool, error)
	Get(contributionID, verifierID string) (*types.VerificationRecord, error)
	Delete(contributionID, verifierID string) error
	ListByContribution(contributionID string) ([]*types.VerificationRecord, error)
	MustClose()
}

// GenericVerificationStore is a provider-backed VerificationStore
type GenericVerificationStore struct {
	dbProvider db.IterableProvider
}

// NewGenericVerificationStore creates a new provider-backed verification store
func NewGenericVerificationStore(dbProvider db.IterableProvider) (*GenericVerificationStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericVerificationStore{dbProvider: dbProvider}, nil
}

func verificationKey(contributionID, verifierID string) []byte {
	return []byte(PrefixVerification + contributionID + ":" + verifierID)
}

func verificationPrefix(contributionID string) []byte {
	return []byte(PrefixVerification + contributionID + ":")
}

// Put stores a verification record unless the pair already acted
func (vs *GenericVerificationStore) Put(rec *types.VerificationRecord) (bool, error) {
	if rec == nil {
		return false, fmt.Errorf("verification record cannot be nil")
	}

	key := verificationKey(rec.ContributionID, rec.VerifierID)
	exists, err := vs.dbProvider.Has(key)
	if err != nil {
		return false, fmt.Errorf("failed to check verification record: %w", err)
	}
	if exists {
		return false, nil
	}

	data, err := jsonx.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to marshal verification record: %w", err)
	}
	if err := vs.dbProvider.Put(key, data); err != nil {
		return false, fmt.Errorf("failed to store verification record: %w", err)
	}
	return true, nil
}

// Get returns the record for a (contribution, verifier) pair, nil when absent
func (vs *GenericVerificationStore) Get(contributionID, verifierID string) (*types.VerificationRecord, error) {
	value, err := vs.dbProvider.Get(verificationKey(contributionID, verifierID))
	if err != nil {
		return nil, fmt.Errorf("failed to get verification record: %w", err)
	}
	if value == nil {
		return nil, nil
	}

	var rec types.VerificationRecord
	if err := jsonx.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record for a pair. Only used to roll back a record whose
// ledger append was rejected; committed records are never retracted.
func (vs *GenericVerificationStore) Delete(contributionID, verifierID string) error {
	return vs.dbProvider.Delete(verificationKey(contributionID, verifierID))
}

// ListByContribution returns every record for one contribution
func (vs *GenericVerificationStore) ListByContribution(contributionID string) ([]*types.VerificationRecord, error) {
	records := make([]*types.VerificationRecord, 0, 8)

	err := vs.dbProvider.IteratePrefix(verificationPrefix(contributionID), func(key, value []byte) bool {
		var rec types.VerificationRecord
		if err := jsonx.Unmarshal(value, &rec); err != nil {
			logx.Error("VERIFICATION_STORE", "Failed to unmarshal record ", string(key), " error: ", err)
			return true
		}
		records = append(records, &rec)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list verification records: %w", err)
	}
	return records, nil
}

// MustClose closes the underlying database provider
func (vs *GenericVerificationStore) MustClose() {
	if err := vs.dbProvider.Close(); err != nil {
		logx.Error("VERIFICATION_STORE", "Failed to close provider")
	}
}
