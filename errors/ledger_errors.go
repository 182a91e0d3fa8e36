package errors

import (
	"errors"

	"contribook/jsonx"
)

// LedgerErrorCode represents standardized error codes for ledger operations
type LedgerErrorCode string

const (
	// General errors
	ErrCodeInternal       LedgerErrorCode = "internal_error"
	ErrCodeInvalidRequest LedgerErrorCode = "invalid_request"

	// Ledger errors
	ErrCodeChainConflict      LedgerErrorCode = "chain_conflict"
	ErrCodeChainFrozen        LedgerErrorCode = "chain_frozen"
	ErrCodeIntegrityViolation LedgerErrorCode = "integrity_violation"

	// Verification errors
	ErrCodeSelfVerificationDenied LedgerErrorCode = "self_verification_denied"
	ErrCodeAlreadyActed           LedgerErrorCode = "already_acted"
	ErrCodeTeamFrozen             LedgerErrorCode = "team_frozen"

	// Lookup errors
	ErrCodeContributionNotFound LedgerErrorCode = "contribution_not_found"
	ErrCodeTeamNotFound         LedgerErrorCode = "team_not_found"
	ErrCodeBlockNotFound        LedgerErrorCode = "block_not_found"
)

// LedgerError represents a standardized ledger error
type LedgerError struct {
	Code    LedgerErrorCode `json:"code"`
	Message string          `json:"message"`
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	out, _ := jsonx.Marshal(LedgerError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(out)
}

// Is lets errors.Is match two LedgerErrors by code
func (e *LedgerError) Is(target error) bool {
	var other *LedgerError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// Error message constants - user-friendly and concise
const (
	ErrMsgChainConflict          = "Concurrent ledger update, please retry"
	ErrMsgChainFrozen            = "Ledger is frozen and rejects new blocks"
	ErrMsgTeamFrozen             = "Team is archived and rejects new actions"
	ErrMsgSelfVerificationDenied = "You cannot verify your own contribution"
	ErrMsgAlreadyActed           = "You already verified or flagged this contribution"
	ErrMsgIntegrityViolation     = "Ledger integrity check failed"
	ErrMsgContributionNotFound   = "Contribution could not be found"
	ErrMsgTeamNotFound           = "Team ledger does not exist"
	ErrMsgBlockNotFound          = "Block could not be found"
	ErrMsgInvalidRequest         = "Request format is invalid"
	ErrMsgInternal               = "Server error, please try again"
)

// Sentinel errors for the core error taxonomy. Matched with errors.Is.
var (
	ErrChainConflict          = NewError(ErrCodeChainConflict, ErrMsgChainConflict)
	ErrChainFrozen            = NewError(ErrCodeChainFrozen, ErrMsgChainFrozen)
	ErrTeamFrozen             = NewError(ErrCodeTeamFrozen, ErrMsgTeamFrozen)
	ErrSelfVerificationDenied = NewError(ErrCodeSelfVerificationDenied, ErrMsgSelfVerificationDenied)
	ErrAlreadyActed           = NewError(ErrCodeAlreadyActed, ErrMsgAlreadyActed)
	ErrIntegrityViolation     = NewError(ErrCodeIntegrityViolation, ErrMsgIntegrityViolation)
	ErrContributionNotFound   = NewError(ErrCodeContributionNotFound, ErrMsgContributionNotFound)
	ErrTeamNotFound           = NewError(ErrCodeTeamNotFound, ErrMsgTeamNotFound)
	ErrBlockNotFound          = NewError(ErrCodeBlockNotFound, ErrMsgBlockNotFound)
)

// NewError creates a new LedgerError and returns it as error interface
func NewError(code LedgerErrorCode, message string) error {
	return &LedgerError{
		Code:    code,
		Message: message,
	}
}

// CodeOf extracts the ledger error code, or internal_error for foreign errors
func CodeOf(err error) LedgerErrorCode {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeInternal
}

// Is re-exports the standard matcher so callers only import one errors package
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports the standard matcher so callers only import one errors package
func As(err error, target any) bool {
	return errors.As(err, target)
}
