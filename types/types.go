package types

import "time"

// Role is the acting user's role within a team, supplied by the auth service
type Role string

const (
	RoleMember     Role = "member"
	RoleInstructor Role = "instructor"
	RoleManager    Role = "manager"
)

// Elevated reports whether the role carries instructor-level verification weight
func (r Role) Elevated() bool {
	return r == RoleInstructor || r == RoleManager
}

// ContributionType mirrors the categories a contribution can be submitted as
type ContributionType string

const (
	ContributionGit      ContributionType = "git"
	ContributionDocument ContributionType = "document"
	ContributionImage    ContributionType = "image"
	ContributionMeeting  ContributionType = "meeting"
	ContributionMental   ContributionType = "mental"
	ContributionOther    ContributionType = "other"
)

// Action is the terminal state a verifier can reach for one contribution.
// Verify and flag are mutually exclusive per (contribution, verifier) pair.
type Action string

const (
	ActionVerified Action = "verified"
	ActionFlagged  Action = "flagged"
)

// VerificationRecord is one verifier's terminal action on one contribution
type VerificationRecord struct {
	ContributionID string    `json:"contribution_id"`
	VerifierID     string    `json:"verifier_id"`
	VerifierRole   Role      `json:"verifier_role"`
	Action         Action    `json:"action"`
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ContributionMeta is the ledger-side index entry for a submitted contribution
type ContributionMeta struct {
	ID            string           `json:"id"`
	TeamID        string           `json:"team_id"`
	ContributorID string           `json:"contributor_id"`
	Type          ContributionType `json:"type"`
	ContentHash   string           `json:"content_hash,omitempty"`
	Title         string           `json:"title,omitempty"`
	SubmittedAt   time.Time        `json:"submitted_at"`
}

// ScoreBreakdown counts each contribution at most once per bucket
type ScoreBreakdown struct {
	TotalContributions uint64 `json:"total_contributions"`
	PeerVerified       uint64 `json:"peer_verified"`
	InstructorVerified uint64 `json:"instructor_verified"`
	Flagged            uint64 `json:"flagged"`
}

// ReputationScore is the materialized score for one user in one team.
// It is always recomputable from the chain plus the verification records.
type ReputationScore struct {
	TeamID    string         `json:"team_id"`
	UserID    string         `json:"user_id"`
	Score     int64          `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Tally is the verification state of one contribution returned to the caller
type Tally struct {
	ContributionID    string `json:"contribution_id"`
	VerificationCount uint64 `json:"verification_count"`
	FlagCount         uint64 `json:"flag_count"`
	ContributorScore  int64  `json:"contributor_score"`
}
