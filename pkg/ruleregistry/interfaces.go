package ruleregistry

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for version content storage backends.
//
// The store is a plain key-value surface: no versioning or conditional-write
// semantics are assumed from it. All version identity lives in the Repository;
// keys are derived from rule and version IDs so an orphaned blob is always
// reconstructible (and deletable) from metadata alone.
type BlobStore interface {
	// Upload writes content at the given key, overwriting any existing blob
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Download reads content at the given key
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes content at the given key
	Delete(ctx context.Context, key string) error

	// GetBlobMeta retrieves storage-level metadata for a blob
	GetBlobMeta(ctx context.Context, key string) (*BlobMeta, error)

	// GetDownloadURL returns a URL for downloading content, for backends
	// that support URL-based access (e.g. presigned S3 URLs)
	GetDownloadURL(ctx context.Context, key string, downloadFilename string) (string, error)
}

// Repository defines the interface for rule and version persistence.
//
// Implementations must enforce uniqueness of (namespace, name) per rule and
// (rule_id, version) per rule version, and report violations as ErrRuleExists
// and ErrVersionExists respectively so the service can classify them as
// conflicts.
type Repository interface {
	// Rule operations
	CreateRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, id uuid.UUID) (*Rule, error)
	GetRuleByName(ctx context.Context, namespace, name string) (*Rule, error)
	UpdateRule(ctx context.Context, rule *Rule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	ListRules(ctx context.Context, filters RuleListFilters) ([]*Rule, error)

	// Version operations
	CreateVersion(ctx context.Context, version *RuleVersion) error
	GetVersion(ctx context.Context, ruleID uuid.UUID, version string) (*RuleVersion, error)
	GetVersionByID(ctx context.Context, id uuid.UUID) (*RuleVersion, error)
	ListVersions(ctx context.Context, ruleID uuid.UUID) ([]*RuleVersion, error)
	DeleteVersionsByRule(ctx context.Context, ruleID uuid.UUID) error

	// Team operations
	CreateTeam(ctx context.Context, team *Team) error
	GetTeam(ctx context.Context, id uuid.UUID) (*Team, error)
	DeleteTeam(ctx context.Context, id uuid.UUID) error
	AddTeamMember(ctx context.Context, member *TeamMember) error
	GetTeamMember(ctx context.Context, teamID, userID uuid.UUID) (*TeamMember, error)

	// Star operations
	CreateStar(ctx context.Context, star *Star) error
	DeleteStar(ctx context.Context, ruleID, userID uuid.UUID) error
	DeleteStarsByRule(ctx context.Context, ruleID uuid.UUID) error

	// Counter operations
	IncrementDownloads(ctx context.Context, ruleID uuid.UUID) error
}

// EventSink defines the interface for registry event handling
type EventSink interface {
	// RuleCreated is fired when a rule is created with its first version
	RuleCreated(ctx context.Context, rule *Rule) error

	// VersionPublished is fired when a new version is published
	VersionPublished(ctx context.Context, rule *Rule, version *RuleVersion) error

	// RuleUpdated is fired when rule metadata is updated
	RuleUpdated(ctx context.Context, rule *Rule) error

	// RuleDeleted is fired when a rule and its versions are deleted
	RuleDeleted(ctx context.Context, ruleID uuid.UUID) error

	// ContentFetched is fired when version content is downloaded
	ContentFetched(ctx context.Context, ruleID uuid.UUID, version string) error
}

// BlobMeta contains storage-level metadata about a blob
type BlobMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}
