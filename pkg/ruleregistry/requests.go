package ruleregistry

import (
	"time"

	"github.com/google/uuid"
)

// Request/Response DTOs

// CreateRuleRequest contains parameters for creating a rule with its first version
type CreateRuleRequest struct {
	Name       string
	Namespace  string
	OwnerID    uuid.UUID
	TeamID     *uuid.UUID
	Visibility Visibility
	Description string
	Tags       []string
	Version    string // optional; defaults to "1.0.0"
	Content    string
	Changelog  string
}

// PublishVersionRequest contains parameters for publishing a new version
type PublishVersionRequest struct {
	RuleID    uuid.UUID
	AuthorID  uuid.UUID
	Version   string // optional; empty bumps the patch component of the current version
	Content   string
	Changelog string
}

// PublishResult is returned on a successful publish
type PublishResult struct {
	Version     string    `json:"version"`
	VersionID   uuid.UUID `json:"version_id"`
	PublishedAt time.Time `json:"published_at"`
}

// FetchContentRequest contains parameters for fetching version content
type FetchContentRequest struct {
	RuleID   uuid.UUID
	Version  string // exact version or VersionLatest
	CallerID uuid.UUID
}

// RuleContent is returned by content fetches
type RuleContent struct {
	Version     string `json:"version"`
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
}

// UpdateRuleRequest contains parameters for updating rule metadata.
// Nil fields are left unchanged. Content and versions are never touched here.
type UpdateRuleRequest struct {
	RuleID      uuid.UUID
	CallerID    uuid.UUID
	Description *string
	Tags        []string
	Visibility  *Visibility
}

// CreateTeamRequest contains parameters for creating a team
type CreateTeamRequest struct {
	Name    string
	OwnerID uuid.UUID
}
