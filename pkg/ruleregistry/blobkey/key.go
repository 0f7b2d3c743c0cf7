// Package blobkey derives blob store keys for rule version content.
//
// Keys are deterministic functions of the rule and version IDs so a key is
// always reconstructible from metadata alone. That keeps orphaned-blob
// cleanup straightforward: whoever holds the IDs can delete the blob without
// consulting the store.
package blobkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for blob key derivation strategies
type Generator interface {
	// VersionKey returns the key for a rule version's content blob
	VersionKey(ruleID, versionID uuid.UUID) string

	// RulePrefix returns the key prefix shared by all blobs of a rule
	RulePrefix(ruleID uuid.UUID) string
}

// FlatGenerator produces the canonical layout:
//
//	rules/{ruleID}/versions/{versionID}.md
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) VersionKey(ruleID, versionID uuid.UUID) string {
	return fmt.Sprintf("rules/%s/versions/%s.md", ruleID, versionID)
}

func (g *FlatGenerator) RulePrefix(ruleID uuid.UUID) string {
	return fmt.Sprintf("rules/%s/", ruleID)
}

// ShardedGenerator shards the rule directory by the leading characters of the
// rule ID, for backends where very wide single directories hurt:
//
//	rules/{shard}/{ruleID}/versions/{versionID}.md
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2}
}

func (g *ShardedGenerator) VersionKey(ruleID, versionID uuid.UUID) string {
	return fmt.Sprintf("rules/%s/%s/versions/%s.md", g.shard(ruleID), ruleID, versionID)
}

func (g *ShardedGenerator) RulePrefix(ruleID uuid.UUID) string {
	return fmt.Sprintf("rules/%s/%s/", g.shard(ruleID), ruleID)
}

func (g *ShardedGenerator) shard(id uuid.UUID) string {
	s := strings.ReplaceAll(id.String(), "-", "")
	n := g.ShardLength
	if n <= 0 || n > len(s) {
		n = 2
	}
	return s[:n]
}
