package ruleregistry

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// SlogEventSink logs registry events through a slog.Logger. It is the default
// sink wired by the config package when event logging is enabled.
type SlogEventSink struct {
	logger *slog.Logger
}

// NewSlogEventSink creates an event sink that logs to the given logger.
// A nil logger falls back to slog.Default().
func NewSlogEventSink(logger *slog.Logger) *SlogEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEventSink{logger: logger}
}

func (s *SlogEventSink) RuleCreated(ctx context.Context, rule *Rule) error {
	s.logger.Info("rule created",
		"rule_id", rule.ID,
		"name", rule.Name,
		"namespace", rule.Namespace,
		"visibility", rule.Visibility,
		"version", rule.Version)
	return nil
}

func (s *SlogEventSink) VersionPublished(ctx context.Context, rule *Rule, version *RuleVersion) error {
	s.logger.Info("version published",
		"rule_id", rule.ID,
		"name", rule.Name,
		"version", version.Version,
		"version_id", version.ID)
	return nil
}

func (s *SlogEventSink) RuleUpdated(ctx context.Context, rule *Rule) error {
	s.logger.Info("rule updated", "rule_id", rule.ID, "name", rule.Name)
	return nil
}

func (s *SlogEventSink) RuleDeleted(ctx context.Context, ruleID uuid.UUID) error {
	s.logger.Info("rule deleted", "rule_id", ruleID)
	return nil
}

func (s *SlogEventSink) ContentFetched(ctx context.Context, ruleID uuid.UUID, version string) error {
	s.logger.Debug("content fetched", "rule_id", ruleID, "version", version)
	return nil
}
