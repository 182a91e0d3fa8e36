package store

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"contribook/chain"
	"contribook/db"
	"contribook/errors"
	"contribook/jsonx"
	"contribook/logx"
	"contribook/monitoring"
)

// LedgerStore owns block sequencing and persistence for every team chain.
// All mutation goes through Append; blocks are immutable once written.
type LedgerStore interface {
	Append(teamID string, event chain.EventPayload, contributionID, contributorID, contentHash string, verificationCount uint64, scoreSnapshot int64) (*chain.Block, error)
	GetChain(teamID string, fromSequence uint64, limit int) ([]*chain.Block, error)
	GetTip(teamID string) (*chain.Block, error)
	GetBlocksByContribution(teamID, contributionID string) ([]*chain.Block, error)
	ChainLength(teamID string) (uint64, error)
	Freeze(teamID string) error
	Unfreeze(teamID string) error
	IsFrozen(teamID string) (bool, error)
	MustClose()
}

// tipMeta is the check-and-set token for one team chain
type tipMeta struct {
	Sequence uint64   `json:"sequence"`
	Hash     [32]byte `json:"hash"`
}

// GenericLedgerStore is a database-agnostic LedgerStore over a DatabaseProvider.
// Each team chain is independent: a per-team lock arena serializes appends for
// one team while teams never contend with each other.
type GenericLedgerStore struct {
	provider  db.DatabaseProvider
	teamLocks sync.Map // teamID -> *sync.Mutex
}

// NewGenericLedgerStore creates a new generic ledger store with the given provider
func NewGenericLedgerStore(provider db.DatabaseProvider) (*GenericLedgerStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericLedgerStore{provider: provider}, nil
}

// BlockKey builds the storage key of a block. Exported for export/migration
// tooling that reads chains straight off the provider.
func BlockKey(teamID string, sequence uint64) []byte {
	prefix := PrefixChain + teamID + ":"
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], sequence)
	return key
}

func tipKey(teamID string) []byte {
	return []byte(PrefixChainMeta + teamID + ":" + ChainMetaKeyTip)
}

func frozenKey(teamID string) []byte {
	return []byte(PrefixChainMeta + teamID + ":" + ChainMetaKeyFrozen)
}

func (s *GenericLedgerStore) teamLock(teamID string) *sync.Mutex {
	lock, _ := s.teamLocks.LoadOrStore(teamID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// readTip loads the check-and-set token for a team, nil when no chain exists
func (s *GenericLedgerStore) readTip(teamID string) (*tipMeta, error) {
	value, err := s.provider.Get(tipKey(teamID))
	if err != nil {
		return nil, fmt.Errorf("failed to get tip: %w", err)
	}
	if value == nil {
		return nil, nil
	}

	var tip tipMeta
	if err := jsonx.Unmarshal(value, &tip); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tip: %w", err)
	}
	return &tip, nil
}

// writeBlock persists a block together with the advanced tip in one batch
func (s *GenericLedgerStore) writeBlock(b *chain.Block) error {
	value, err := jsonx.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}

	tipValue, err := jsonx.Marshal(tipMeta{Sequence: b.Sequence, Hash: b.BlockHash})
	if err != nil {
		return fmt.Errorf("failed to marshal tip: %w", err)
	}

	batch := s.provider.Batch()
	defer batch.Close()
	batch.Put(BlockKey(b.TeamID, b.Sequence), value)
	batch.Put(tipKey(b.TeamID), tipValue)
	return batch.Write()
}

// Append reads the current tip for teamID (creating the genesis block on the
// first call), assembles the next block and persists it. The sequence slot is
// check-and-set: if another writer already took it, the append fails with
// ErrChainConflict and the caller retries the whole read-compute-append cycle.
func (s *GenericLedgerStore) Append(
	teamID string,
	event chain.EventPayload,
	contributionID, contributorID, contentHash string,
	verificationCount uint64,
	scoreSnapshot int64,
) (*chain.Block, error) {
	if teamID == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidRequest, "team id cannot be empty")
	}

	lock := s.teamLock(teamID)
	lock.Lock()
	defer lock.Unlock()

	frozen, err := s.checkFrozen(teamID)
	if err != nil {
		return nil, err
	}
	if frozen {
		monitoring.RecordRejectedAppend(monitoring.AppendRejectedFrozen)
		return nil, errors.ErrChainFrozen
	}

	tip, err := s.readTip(teamID)
	if err != nil {
		return nil, err
	}

	if tip == nil {
		genesis := chain.GenesisBlock(teamID)
		if err := s.writeBlock(genesis); err != nil {
			return nil, fmt.Errorf("failed to write genesis block: %w", err)
		}
		tip = &tipMeta{Sequence: genesis.Sequence, Hash: genesis.BlockHash}
		logx.Info("LEDGER", "Created genesis block for team ", teamID)
	}

	next := chain.AssembleBlock(
		tip.Sequence+1,
		tip.Hash,
		teamID,
		contributionID,
		contributorID,
		contentHash,
		event,
		verificationCount,
		scoreSnapshot,
	)

	// Check-and-set on the sequence slot: a concurrent writer sharing the
	// database (other replica) may already have taken it.
	exists, err := s.provider.Has(BlockKey(teamID, next.Sequence))
	if err != nil {
		return nil, fmt.Errorf("failed to check sequence slot: %w", err)
	}
	if exists {
		monitoring.RecordRejectedAppend(monitoring.AppendRejectedConflict)
		return nil, errors.ErrChainConflict
	}

	if err := s.writeBlock(next); err != nil {
		return nil, fmt.Errorf("failed to write block: %w", err)
	}

	monitoring.IncreaseAppendedBlockCount()
	monitoring.SetChainHeight(teamID, next.Sequence)
	logx.Info("LEDGER", fmt.Sprintf("Appended block | team=%s seq=%d event=%s contribution=%s", teamID, next.Sequence, next.Event.Kind, contributionID))
	return next, nil
}

// GetTip returns the newest block of a team chain, nil when no chain exists
func (s *GenericLedgerStore) GetTip(teamID string) (*chain.Block, error) {
	tip, err := s.readTip(teamID)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, nil
	}
	return s.blockAt(teamID, tip.Sequence)
}

func (s *GenericLedgerStore) blockAt(teamID string, sequence uint64) (*chain.Block, error) {
	value, err := s.provider.Get(BlockKey(teamID, sequence))
	if err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	if value == nil {
		return nil, errors.ErrBlockNotFound
	}

	var b chain.Block
	if err := jsonx.Unmarshal(value, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block: %w", err)
	}
	return &b, nil
}

// GetChain returns up to limit blocks starting at fromSequence in ascending
// order. The cursor is restartable: callers page by passing the next sequence.
func (s *GenericLedgerStore) GetChain(teamID string, fromSequence uint64, limit int) ([]*chain.Block, error) {
	tip, err := s.readTip(teamID)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, errors.ErrTeamNotFound
	}

	if fromSequence > tip.Sequence {
		return []*chain.Block{}, nil
	}

	last := tip.Sequence
	if limit > 0 && fromSequence+uint64(limit)-1 < last {
		last = fromSequence + uint64(limit) - 1
	}

	keys := make([][]byte, 0, last-fromSequence+1)
	for seq := fromSequence; seq <= last; seq++ {
		keys = append(keys, BlockKey(teamID, seq))
	}

	values, err := s.provider.GetBatch(keys)
	if err != nil {
		return nil, fmt.Errorf("failed to get blocks: %w", err)
	}

	blocks := make([]*chain.Block, 0, len(keys))
	for _, key := range keys {
		value, ok := values[string(key)]
		if !ok {
			return nil, errors.ErrBlockNotFound
		}
		var b chain.Block
		if err := jsonx.Unmarshal(value, &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal block: %w", err)
		}
		blocks = append(blocks, &b)
	}
	return blocks, nil
}

// GetBlocksByContribution returns every block recorded for one contribution
// in ascending sequence order
func (s *GenericLedgerStore) GetBlocksByContribution(teamID, contributionID string) ([]*chain.Block, error) {
	matches := make([]*chain.Block, 0, 4)
	var cursor uint64

	for {
		page, err := s.GetChain(teamID, cursor, chainPageSize)
		if err != nil {
			return nil, err
		}
		for _, b := range page {
			if b.ContributionID == contributionID {
				matches = append(matches, b)
			}
		}
		if len(page) < chainPageSize {
			return matches, nil
		}
		cursor = page[len(page)-1].Sequence + 1
	}
}

const chainPageSize = 256

// ChainLength returns the number of blocks in a team chain, genesis included
func (s *GenericLedgerStore) ChainLength(teamID string) (uint64, error) {
	tip, err := s.readTip(teamID)
	if err != nil {
		return 0, err
	}
	if tip == nil {
		return 0, nil
	}
	return tip.Sequence + 1, nil
}

// Freeze stops all further appends for a team. The freeze takes the same
// per-team lock as Append, so a racing append lands either fully before or
// fully after the gate.
func (s *GenericLedgerStore) Freeze(teamID string) error {
	lock := s.teamLock(teamID)
	lock.Lock()
	defer lock.Unlock()

	frozen, err := s.checkFrozen(teamID)
	if err != nil {
		return err
	}
	if frozen {
		return nil
	}

	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.provider.Put(frozenKey(teamID), []byte(stamp)); err != nil {
		return fmt.Errorf("failed to freeze chain: %w", err)
	}

	monitoring.IncreaseFrozenTeamCount()
	logx.Info("LEDGER", "Froze chain for team ", teamID)
	return nil
}

// Unfreeze re-opens a team chain for appends
func (s *GenericLedgerStore) Unfreeze(teamID string) error {
	lock := s.teamLock(teamID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.provider.Delete(frozenKey(teamID)); err != nil {
		return fmt.Errorf("failed to unfreeze chain: %w", err)
	}

	logx.Info("LEDGER", "Unfroze chain for team ", teamID)
	return nil
}

// IsFrozen reports whether a team chain rejects appends
func (s *GenericLedgerStore) IsFrozen(teamID string) (bool, error) {
	return s.checkFrozen(teamID)
}

func (s *GenericLedgerStore) checkFrozen(teamID string) (bool, error) {
	exists, err := s.provider.Has(frozenKey(teamID))
	if err != nil {
		return false, fmt.Errorf("failed to check frozen flag: %w", err)
	}
	return exists, nil
}

// MustClose closes the underlying database provider
func (s *GenericLedgerStore) MustClose() {
	if err := s.provider.Close(); err != nil {
		logx.Error("LEDGER", "Failed to close provider")
	}
}
