package ruleregistry

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface for the rule registry library
type Service interface {
	// Rule operations
	CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error)
	GetRule(ctx context.Context, callerID, id uuid.UUID) (*Rule, error)
	GetRuleByName(ctx context.Context, callerID uuid.UUID, namespace, name string) (*Rule, error)
	UpdateRule(ctx context.Context, req UpdateRuleRequest) (*Rule, error)
	DeleteRule(ctx context.Context, callerID, id uuid.UUID) error
	ListRules(ctx context.Context, callerID uuid.UUID, filters RuleListFilters) ([]*Rule, error)

	// Version operations
	PublishVersion(ctx context.Context, req PublishVersionRequest) (*PublishResult, error)
	GetVersion(ctx context.Context, callerID, ruleID uuid.UUID, version string) (*RuleVersion, error)
	ListVersions(ctx context.Context, callerID, ruleID uuid.UUID) ([]*RuleVersion, error)

	// Content operations
	FetchContent(ctx context.Context, req FetchContentRequest) (*RuleContent, error)

	// Team operations
	CreateTeam(ctx context.Context, req CreateTeamRequest) (*Team, error)
	AddTeamMember(ctx context.Context, callerID, teamID, userID uuid.UUID, role TeamRole) error

	// Star operations
	StarRule(ctx context.Context, callerID, ruleID uuid.UUID) error
	UnstarRule(ctx context.Context, callerID, ruleID uuid.UUID) error
}
