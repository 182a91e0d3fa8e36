package audit

import (
	"bytes"
	"fmt"
	"time"

	"contribook/chain"
	"contribook/logx"
	"contribook/monitoring"
	"contribook/store"
)

// Failure reasons reported by a chain walk
const (
	ReasonHashMismatch = "hash_mismatch"
	ReasonBrokenLink   = "broken_link"
	ReasonSequenceGap  = "sequence_gap"
	ReasonBadGenesis   = "bad_genesis"
)

const auditPageSize = 256

// ValidationResult reports the outcome of a full chain walk
type ValidationResult struct {
	TeamID           string  `json:"team_id"`
	Valid            bool    `json:"valid"`
	BlocksChecked    uint64  `json:"blocks_checked"`
	BrokenAtSequence *uint64 `json:"broken_at_sequence,omitempty"`
	Reason           string  `json:"reason,omitempty"`
}

// Auditor re-verifies stored chains block by block. It only reads; repairing
// a broken chain is an operator decision, not an auditor one.
type Auditor struct {
	ledger store.LedgerStore
}

// NewAuditor creates an auditor over the ledger store
func NewAuditor(ledger store.LedgerStore) *Auditor {
	return &Auditor{ledger: ledger}
}

// VerifyChain walks a team chain from genesis to tip, rehashing every block
// and checking the link and sequence structure. It stops at the first broken
// block and reports its sequence.
func (a *Auditor) VerifyChain(teamID string) (*ValidationResult, error) {
	start := time.Now()

	result := &ValidationResult{TeamID: teamID, Valid: true}
	var prev *chain.Block
	var cursor uint64

	for {
		page, err := a.ledger.GetChain(teamID, cursor, auditPageSize)
		if err != nil {
			return nil, err
		}

		for _, b := range page {
			if !a.checkBlock(result, prev, b) {
				a.finish(result, start)
				return result, nil
			}
			result.BlocksChecked++
			prev = b
		}

		if len(page) < auditPageSize {
			break
		}
		cursor = page[len(page)-1].Sequence + 1
	}

	a.finish(result, start)
	return result, nil
}

// checkBlock validates one block against its predecessor. Returns false and
// marks the result on the first violation.
func (a *Auditor) checkBlock(result *ValidationResult, prev, b *chain.Block) bool {
	fail := func(reason string) bool {
		seq := b.Sequence
		result.Valid = false
		result.BrokenAtSequence = &seq
		result.Reason = reason
		return false
	}

	if prev == nil {
		if !b.IsGenesis() || b.PrevHash != chain.ZeroHash {
			return fail(ReasonBadGenesis)
		}
	} else {
		if b.Sequence != prev.Sequence+1 {
			return fail(ReasonSequenceGap)
		}
		if !bytes.Equal(b.PrevHash[:], prev.BlockHash[:]) {
			return fail(ReasonBrokenLink)
		}
	}

	if b.ComputeHash() != b.BlockHash {
		return fail(ReasonHashMismatch)
	}
	return true
}

func (a *Auditor) finish(result *ValidationResult, start time.Time) {
	monitoring.RecordAuditDuration(time.Since(start))
	if result.Valid {
		logx.Info("AUDIT", fmt.Sprintf("Chain verified | team=%s blocks=%d", result.TeamID, result.BlocksChecked))
		return
	}
	monitoring.IncreaseAuditFailureCount()
	logx.Error("AUDIT", fmt.Sprintf("Chain integrity violation | team=%s sequence=%d reason=%s", result.TeamID, *result.BrokenAtSequence, result.Reason))
}
