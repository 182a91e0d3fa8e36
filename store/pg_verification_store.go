package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"contribook/logx"
	"contribook/types"
)

// PgVerificationStore is a Postgres-backed VerificationStore for deployments
// where verification records live next to the relational app data. Uniqueness
// per (contribution, verifier) is enforced by the primary key.
type PgVerificationStore struct {
	db *sql.DB
}

// NewPgVerificationStore opens a Postgres connection and ensures the schema
func NewPgVerificationStore(dsn string) (*PgVerificationStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := &PgVerificationStore{db: db}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (ps *PgVerificationStore) ensureSchema() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS contribution_verifications (
			contribution_id TEXT NOT NULL,
			verifier_id     TEXT NOT NULL,
			verifier_role   TEXT NOT NULL,
			action          TEXT NOT NULL,
			comment         TEXT,
			created_at      TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (contribution_id, verifier_id)
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Put stores a verification record unless the pair already acted
func (ps *PgVerificationStore) Put(rec *types.VerificationRecord) (bool, error) {
	if rec == nil {
		return false, fmt.Errorf("verification record cannot be nil")
	}

	res, err := ps.db.Exec(`
		INSERT INTO contribution_verifications
			(contribution_id, verifier_id, verifier_role, action, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (contribution_id, verifier_id) DO NOTHING`,
		rec.ContributionID, rec.VerifierID, string(rec.VerifierRole), string(rec.Action), rec.Comment, rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert verification record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

// Get returns the record for a (contribution, verifier) pair, nil when absent
func (ps *PgVerificationStore) Get(contributionID, verifierID string) (*types.VerificationRecord, error) {
	rec := &types.VerificationRecord{}
	var role, action string

	err := ps.db.QueryRow(`
		SELECT contribution_id, verifier_id, verifier_role, action, COALESCE(comment, ''), created_at
		FROM contribution_verifications
		WHERE contribution_id = $1 AND verifier_id = $2`,
		contributionID, verifierID).
		Scan(&rec.ContributionID, &rec.VerifierID, &role, &action, &rec.Comment, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query verification record: %w", err)
	}

	rec.VerifierRole = types.Role(role)
	rec.Action = types.Action(action)
	return rec, nil
}

// Delete removes the record for a pair
func (ps *PgVerificationStore) Delete(contributionID, verifierID string) error {
	_, err := ps.db.Exec(`
		DELETE FROM contribution_verifications
		WHERE contribution_id = $1 AND verifier_id = $2`,
		contributionID, verifierID)
	if err != nil {
		return fmt.Errorf("failed to delete verification record: %w", err)
	}
	return nil
}

// ListByContribution returns every record for one contribution
func (ps *PgVerificationStore) ListByContribution(contributionID string) ([]*types.VerificationRecord, error) {
	rows, err := ps.db.Query(`
		SELECT contribution_id, verifier_id, verifier_role, action, COALESCE(comment, ''), created_at
		FROM contribution_verifications
		WHERE contribution_id = $1
		ORDER BY verifier_id`,
		contributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query verification records: %w", err)
	}
	defer rows.Close()

	records := make([]*types.VerificationRecord, 0, 8)
	for rows.Next() {
		rec := &types.VerificationRecord{}
		var role, action string
		if err := rows.Scan(&rec.ContributionID, &rec.VerifierID, &role, &action, &rec.Comment, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verification record: %w", err)
		}
		rec.VerifierRole = types.Role(role)
		rec.Action = types.Action(action)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate verification records: %w", err)
	}
	return records, nil
}

// MustClose closes the database connection
func (ps *PgVerificationStore) MustClose() {
	if err := ps.db.Close(); err != nil {
		logx.Error("VERIFICATION_STORE", "Failed to close postgres connection")
	}
}
