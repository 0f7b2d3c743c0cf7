package ruleregistry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrRuleNotFound indicates a rule was not found
	ErrRuleNotFound = errors.New("rule not found")

	// ErrVersionNotFound indicates a rule version was not found
	ErrVersionNotFound = errors.New("rule version not found")

	// ErrContentMissing indicates a version row exists but its blob is absent.
	// This is an integrity fault: the metadata points at storage that was
	// never written or was removed out of band.
	ErrContentMissing = errors.New("version content missing from blob store")

	// ErrRuleExists indicates a rule with the same name already exists in the namespace
	ErrRuleExists = errors.New("rule already exists")

	// ErrVersionExists indicates the version number is already published for the rule
	ErrVersionExists = errors.New("version already exists")

	// ErrTeamNotFound indicates a team was not found
	ErrTeamNotFound = errors.New("team not found")

	// ErrNotTeamMember indicates a user has no membership in a team
	ErrNotTeamMember = errors.New("not a team member")

	// ErrForbidden indicates the caller lacks permission for the operation
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidVersion indicates a version string is not a strict MAJOR.MINOR.PATCH
	ErrInvalidVersion = errors.New("invalid version")

	// ErrVersionNotNewer indicates an explicit version does not advance the current one
	ErrVersionNotNewer = errors.New("version must be greater than current version")

	// ErrAlreadyStarred indicates the user has already starred the rule
	ErrAlreadyStarred = errors.New("rule already starred")

	// ErrNotStarred indicates the user has not starred the rule
	ErrNotStarred = errors.New("rule not starred")

	// ErrStorageBackendNotFound indicates a storage backend was not found
	ErrStorageBackendNotFound = errors.New("storage backend not found")

	// ErrBlobNotFound indicates a blob store has no object at the given key.
	// Returned by BlobStore implementations; the service surfaces it to
	// callers as ErrContentMissing.
	ErrBlobNotFound = errors.New("blob not found")
)

// IsNotFound reports whether err classifies as a missing rule, version, or blob.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrContentMissing) ||
		errors.Is(err, ErrBlobNotFound) ||
		errors.Is(err, ErrTeamNotFound)
}

// IsConflict reports whether err classifies as a duplicate-key conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrRuleExists) ||
		errors.Is(err, ErrVersionExists) ||
		errors.Is(err, ErrVersionNotNewer) ||
		errors.Is(err, ErrAlreadyStarred)
}

// RuleError represents an error related to rule operations
type RuleError struct {
	RuleID uuid.UUID
	Op     string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule operation %s failed for rule %s: %v", e.Op, e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// VersionError represents an error related to rule version operations
type VersionError struct {
	RuleID  uuid.UUID
	Version string
	Op      string
	Err     error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("version operation %s failed for rule %s version %q: %v", e.Op, e.RuleID, e.Version, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
