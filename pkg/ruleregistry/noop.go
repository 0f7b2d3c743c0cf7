package ruleregistry

import (
	"context"

	"github.com/google/uuid"
)

// NoopEventSink is an event sink that does nothing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-op event sink
func NewNoopEventSink() *NoopEventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) RuleCreated(ctx context.Context, rule *Rule) error { return nil }

func (n *NoopEventSink) VersionPublished(ctx context.Context, rule *Rule, version *RuleVersion) error {
	return nil
}

func (n *NoopEventSink) RuleUpdated(ctx context.Context, rule *Rule) error { return nil }

func (n *NoopEventSink) RuleDeleted(ctx context.Context, ruleID uuid.UUID) error { return nil }

func (n *NoopEventSink) ContentFetched(ctx context.Context, ruleID uuid.UUID, version string) error {
	return nil
}
