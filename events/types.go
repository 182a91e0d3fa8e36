package events

import (
	"time"
)

// EventType is an enum-like string type for ledger events
type EventType string

const (
	EventBlockAppended        EventType = "BlockAppended"
	EventContributionVerified EventType = "ContributionVerified"
	EventContributionFlagged  EventType = "ContributionFlagged"
	EventTeamFrozen           EventType = "TeamFrozen"
)

// LedgerEvent represents any event that occurs on a team ledger
type LedgerEvent interface {
	Type() EventType
	Timestamp() time.Time
	TeamID() string
}

// BlockAppended event when a block is appended to a team chain
type BlockAppended struct {
	teamID         string
	sequence       uint64
	blockHash      string
	contributionID string
	timestamp      time.Time
}

func NewBlockAppended(teamID string, sequence uint64, blockHash string, contributionID string) *BlockAppended {
	return &BlockAppended{
		teamID:         teamID,
		sequence:       sequence,
		blockHash:      blockHash,
		contributionID: contributionID,
		timestamp:      time.Now(),
	}
}

func (e *BlockAppended) Type() EventType {
	return EventBlockAppended
}

func (e *BlockAppended) Timestamp() time.Time {
	return e.timestamp
}

func (e *BlockAppended) TeamID() string {
	return e.teamID
}

func (e *BlockAppended) Sequence() uint64 {
	return e.sequence
}

func (e *BlockAppended) BlockHash() string {
	return e.blockHash
}

func (e *BlockAppended) ContributionID() string {
	return e.contributionID
}

// ContributionVerified event when a verifier confirms a contribution
type ContributionVerified struct {
	teamID         string
	contributionID string
	verifierID     string
	instructor     bool
	timestamp      time.Time
}

func NewContributionVerified(teamID, contributionID, verifierID string, instructor bool) *ContributionVerified {
	return &ContributionVerified{
		teamID:         teamID,
		contributionID: contributionID,
		verifierID:     verifierID,
		instructor:     instructor,
		timestamp:      time.Now(),
	}
}

func (e *ContributionVerified) Type() EventType {
	return EventContributionVerified
}

func (e *ContributionVerified) Timestamp() time.Time {
	return e.timestamp
}

func (e *ContributionVerified) TeamID() string {
	return e.teamID
}

func (e *ContributionVerified) ContributionID() string {
	return e.contributionID
}

func (e *ContributionVerified) VerifierID() string {
	return e.verifierID
}

func (e *ContributionVerified) Instructor() bool {
	return e.instructor
}

// ContributionFlagged event when a teammate flags a contribution
type ContributionFlagged struct {
	teamID         string
	contributionID string
	flaggerID      string
	timestamp      time.Time
}

func NewContributionFlagged(teamID, contributionID, flaggerID string) *ContributionFlagged {
	return &ContributionFlagged{
		teamID:         teamID,
		contributionID: contributionID,
		flaggerID:      flaggerID,
		timestamp:      time.Now(),
	}
}

func (e *ContributionFlagged) Type() EventType {
	return EventContributionFlagged
}

func (e *ContributionFlagged) Timestamp() time.Time {
	return e.timestamp
}

func (e *ContributionFlagged) TeamID() string {
	return e.teamID
}

func (e *ContributionFlagged) ContributionID() string {
	return e.contributionID
}

func (e *ContributionFlagged) FlaggerID() string {
	return e.flaggerID
}

// TeamFrozen event when a team chain stops accepting appends
type TeamFrozen struct {
	teamID    string
	timestamp time.Time
}

func NewTeamFrozen(teamID string) *TeamFrozen {
	return &TeamFrozen{
		teamID:    teamID,
		timestamp: time.Now(),
	}
}

func (e *TeamFrozen) Type() EventType {
	return EventTeamFrozen
}

func (e *TeamFrozen) Timestamp() time.Time {
	return e.timestamp
}

func (e *TeamFrozen) TeamID() string {
	return e.teamID
}
