package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"time"
)

// EventKind tags the variant a block records
type EventKind string

const (
	EventGenesis            EventKind = "genesis"
	EventCreated            EventKind = "created"
	EventVerified           EventKind = "verified"
	EventInstructorVerified EventKind = "instructor_verified"
	EventFlagged            EventKind = "flagged"
)

// EventPayload is the tagged event variant carried by a block.
// ActorID is the verifier or flagger for verification events, and the
// contributor for created events.
type EventPayload struct {
	Kind    EventKind `json:"kind"`
	ActorID string    `json:"actor_id,omitempty"`
}

// GenesisContributionRef is the contribution ref carried by every genesis block
const GenesisContributionRef = "genesis"

// ZeroHash is the previous-hash sentinel of a genesis block
var ZeroHash [32]byte

type Block struct {
	Sequence          uint64       `json:"sequence"`
	Timestamp         time.Time    `json:"timestamp"`
	TeamID            string       `json:"team_id"`
	ContributionID    string       `json:"contribution_id"`
	ContributorID     string       `json:"contributor_id"`
	ContentHash       string       `json:"content_hash,omitempty"`
	Event             EventPayload `json:"event"`
	VerificationCount uint64       `json:"verification_count"`
	ReputationScore   int64        `json:"reputation_score"`
	PrevHash          [32]byte     `json:"prev_hash"`
	BlockHash         [32]byte     `json:"block_hash"`
}

// AssembleBlock builds an immutable block and seals it with its content hash
func AssembleBlock(
	sequence uint64,
	prevHash [32]byte,
	teamID string,
	contributionID string,
	contributorID string,
	contentHash string,
	event EventPayload,
	verificationCount uint64,
	reputationScore int64,
) *Block {
	b := &Block{
		Sequence:          sequence,
		Timestamp:         time.Now().UTC(),
		TeamID:            teamID,
		ContributionID:    contributionID,
		ContributorID:     contributorID,
		ContentHash:       contentHash,
		Event:             event,
		VerificationCount: verificationCount,
		ReputationScore:   reputationScore,
		PrevHash:          prevHash,
	}
	b.BlockHash = b.ComputeHash()
	return b
}

// GenesisBlock builds the sequence-zero block anchoring a team chain
func GenesisBlock(teamID string) *Block {
	return AssembleBlock(
		0,
		ZeroHash,
		teamID,
		GenesisContributionRef,
		"",
		"",
		EventPayload{Kind: EventGenesis},
		0,
		0,
	)
}

// ComputeHash recomputes the block hash from every field except BlockHash.
// The serialization is fixed: big-endian integers, length-prefixed strings,
// UnixNano timestamps. The same stored fields always produce the same hash.
func (b *Block) ComputeHash() [32]byte {
	h := sha256.New()
	buf := make([]byte, 8)

	binary.BigEndian.PutUint64(buf, b.Sequence)
	h.Write(buf)

	binary.BigEndian.PutUint64(buf, uint64(b.Timestamp.UnixNano()))
	h.Write(buf)

	writeString(h, buf, b.TeamID)
	writeString(h, buf, b.ContributionID)
	writeString(h, buf, b.ContributorID)
	writeString(h, buf, b.ContentHash)
	writeString(h, buf, string(b.Event.Kind))
	writeString(h, buf, b.Event.ActorID)

	binary.BigEndian.PutUint64(buf, b.VerificationCount)
	h.Write(buf)

	binary.BigEndian.PutUint64(buf, uint64(b.ReputationScore))
	h.Write(buf)

	h.Write(b.PrevHash[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeString(h hash.Hash, buf []byte, s string) {
	binary.BigEndian.PutUint64(buf, uint64(len(s)))
	h.Write(buf)
	h.Write([]byte(s))
}

// IsGenesis reports whether the block anchors its chain
func (b *Block) IsGenesis() bool {
	return b.Sequence == 0 && b.Event.Kind == EventGenesis
}
