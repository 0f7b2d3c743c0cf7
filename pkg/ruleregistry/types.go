package ruleregistry

import (
	"time"

	"github.com/google/uuid"
)

// Visibility is the domain type for rule access levels.
type Visibility string

// Visibility constants (typed).
const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
)

// IsValid reports whether v is one of the known visibility levels.
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityTeam:
		return true
	}
	return false
}

// TeamRole is the domain type for team membership roles.
type TeamRole string

// Team role constants (typed).
const (
	TeamRoleOwner  TeamRole = "owner"
	TeamRoleEditor TeamRole = "editor"
	TeamRoleViewer TeamRole = "viewer"
)

// IsValid reports whether r is one of the known team roles.
func (r TeamRole) IsValid() bool {
	switch r {
	case TeamRoleOwner, TeamRoleEditor, TeamRoleViewer:
		return true
	}
	return false
}

// CanPublish reports whether the role grants write access to team rules.
func (r TeamRole) CanPublish() bool {
	return r == TeamRoleOwner || r == TeamRoleEditor
}

// VersionLatest selects a rule's current version on content fetches.
const VersionLatest = "latest"

// Rule represents a named, versioned document owned by a user or team.
//
// Version and LatestVersionID track the current published revision. They are
// advanced by the service after each successful publish; the RuleVersion rows
// themselves are immutable.
type Rule struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Namespace       string     `json:"namespace,omitempty"`
	OwnerID         uuid.UUID  `json:"owner_id"`
	TeamID          *uuid.UUID `json:"team_id,omitempty"`
	Visibility      Visibility `json:"visibility"`
	Description     string     `json:"description,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	Version         string     `json:"version,omitempty"`
	LatestVersionID *uuid.UUID `json:"latest_version_id,omitempty"`
	Downloads       int64      `json:"downloads"`
	Stars           int64      `json:"stars"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RuleVersion represents one immutable published revision of a rule.
//
// ContentHash is the hex-encoded SHA-256 digest of the blob bytes computed at
// publish time. BlobKey locates the content in the blob store and is derived
// deterministically from the rule and version IDs.
type RuleVersion struct {
	ID          uuid.UUID `json:"id"`
	RuleID      uuid.UUID `json:"rule_id"`
	Version     string    `json:"version"`
	Changelog   string    `json:"changelog,omitempty"`
	ContentHash string    `json:"content_hash"`
	BlobKey     string    `json:"blob_key"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Team represents a group of users sharing access to team-visibility rules.
type Team struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeamMember associates a user with a team and a role.
type TeamMember struct {
	TeamID    uuid.UUID `json:"team_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      TeamRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Star records that a user starred a rule. (RuleID, UserID) is unique.
type Star struct {
	RuleID    uuid.UUID `json:"rule_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RuleListFilters defines filtering options for listing rules.
type RuleListFilters struct {
	OwnerID    *uuid.UUID
	TeamID     *uuid.UUID
	Namespace  *string
	Visibility *Visibility
	Tag        *string
	Search     *string
	Limit      *int
	Offset     *int
}
