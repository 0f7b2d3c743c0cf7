package ruleregistry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zxcvhub/registry/pkg/ruleregistry/blobkey"
)

// service implements the Service interface
type service struct {
	repository     Repository
	blobStores     map[string]BlobStore
	defaultBackend string
	keys           blobkey.Generator
	eventSink      EventSink
	logger         *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore adds a blob storage backend. The first registered backend
// becomes the default unless WithDefaultBackend overrides it.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
		if s.defaultBackend == "" {
			s.defaultBackend = name
		}
	}
}

// WithDefaultBackend selects the backend new version blobs are written to
func WithDefaultBackend(name string) Option {
	return func(s *service) {
		s.defaultBackend = name
	}
}

// WithKeyGenerator sets the blob key derivation strategy
func WithKeyGenerator(g blobkey.Generator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger used for compensation and event failures
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores: make(map[string]BlobStore),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if len(s.blobStores) == 0 {
		return nil, fmt.Errorf("at least one blob store is required")
	}
	if _, ok := s.blobStores[s.defaultBackend]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, s.defaultBackend)
	}
	if s.keys == nil {
		s.keys = blobkey.NewFlatGenerator()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// hashContent computes the hex-encoded SHA-256 digest of version content.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Rule operations

func (s *service) CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("rule name is required")
	}
	if req.Visibility == "" {
		req.Visibility = VisibilityPrivate
	}
	if !req.Visibility.IsValid() {
		return nil, fmt.Errorf("invalid visibility %q", req.Visibility)
	}
	if req.Content == "" {
		return nil, fmt.Errorf("initial content is required")
	}

	version := req.Version
	if version == "" {
		version = "1.0.0"
	}
	if err := ValidateVersion(version); err != nil {
		return nil, err
	}

	if req.Visibility == VisibilityTeam {
		if req.TeamID == nil {
			return nil, fmt.Errorf("team id is required for team visibility")
		}
		if err := s.requireTeamPublisher(ctx, *req.TeamID, req.OwnerID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	rule := &Rule{
		ID:          uuid.New(),
		Name:        req.Name,
		Namespace:   req.Namespace,
		OwnerID:     req.OwnerID,
		TeamID:      req.TeamID,
		Visibility:  req.Visibility,
		Description: req.Description,
		Tags:        req.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repository.CreateRule(ctx, rule); err != nil {
		return nil, &RuleError{RuleID: rule.ID, Op: "create", Err: err}
	}

	result, err := s.writeVersion(ctx, rule, version, req.Content, req.Changelog, req.OwnerID)
	if err != nil {
		// The rule row was never visible with a version; unwind it.
		s.compensate(ctx, "delete rule row", func() error {
			return s.repository.DeleteRule(ctx, rule.ID)
		})
		return nil, err
	}

	rule.Version = result.Version
	rule.LatestVersionID = &result.VersionID
	rule.UpdatedAt = result.PublishedAt

	if err := s.repository.UpdateRule(ctx, rule); err != nil {
		s.compensate(ctx, "delete version blob", func() error {
			backend := s.blobStores[s.defaultBackend]
			return backend.Delete(ctx, s.keys.VersionKey(rule.ID, result.VersionID))
		})
		s.compensate(ctx, "delete version rows", func() error {
			return s.repository.DeleteVersionsByRule(ctx, rule.ID)
		})
		s.compensate(ctx, "delete rule row", func() error {
			return s.repository.DeleteRule(ctx, rule.ID)
		})
		return nil, &RuleError{RuleID: rule.ID, Op: "create", Err: err}
	}

	if s.eventSink != nil {
		if err := s.eventSink.RuleCreated(ctx, rule); err != nil {
			s.logger.Warn("rule created event failed", "rule_id", rule.ID, "error", err)
		}
	}

	return rule, nil
}

func (s *service) GetRule(ctx context.Context, callerID, id uuid.UUID) (*Rule, error) {
	rule, err := s.repository.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireReadAccess(ctx, rule, callerID); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *service) GetRuleByName(ctx context.Context, callerID uuid.UUID, namespace, name string) (*Rule, error) {
	rule, err := s.repository.GetRuleByName(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	if err := s.requireReadAccess(ctx, rule, callerID); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *service) UpdateRule(ctx context.Context, req UpdateRuleRequest) (*Rule, error) {
	rule, err := s.repository.GetRule(ctx, req.RuleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireWriteAccess(ctx, rule, req.CallerID); err != nil {
		return nil, err
	}

	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.Tags != nil {
		rule.Tags = req.Tags
	}
	if req.Visibility != nil {
		if !req.Visibility.IsValid() {
			return nil, fmt.Errorf("invalid visibility %q", *req.Visibility)
		}
		if *req.Visibility == VisibilityTeam && rule.TeamID == nil {
			return nil, fmt.Errorf("team id is required for team visibility")
		}
		rule.Visibility = *req.Visibility
	}
	rule.UpdatedAt = time.Now().UTC()

	if err := s.repository.UpdateRule(ctx, rule); err != nil {
		return nil, &RuleError{RuleID: rule.ID, Op: "update", Err: err}
	}

	if s.eventSink != nil {
		if err := s.eventSink.RuleUpdated(ctx, rule); err != nil {
			s.logger.Warn("rule updated event failed", "rule_id", rule.ID, "error", err)
		}
	}

	return rule, nil
}

func (s *service) DeleteRule(ctx context.Context, callerID, id uuid.UUID) error {
	rule, err := s.repository.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireDeleteAccess(ctx, rule, callerID); err != nil {
		return err
	}

	versions, err := s.repository.ListVersions(ctx, id)
	if err != nil {
		return &RuleError{RuleID: id, Op: "delete", Err: err}
	}

	if err := s.repository.DeleteStarsByRule(ctx, id); err != nil {
		return &RuleError{RuleID: id, Op: "delete", Err: err}
	}
	if err := s.repository.DeleteVersionsByRule(ctx, id); err != nil {
		return &RuleError{RuleID: id, Op: "delete", Err: err}
	}
	if err := s.repository.DeleteRule(ctx, id); err != nil {
		return &RuleError{RuleID: id, Op: "delete", Err: err}
	}

	// Blobs go last: with metadata gone they are unreachable either way, and
	// a failed delete only leaves an orphan, never a dangling pointer.
	backend := s.blobStores[s.defaultBackend]
	for _, v := range versions {
		key := v.BlobKey
		s.compensate(ctx, "delete version blob", func() error {
			return backend.Delete(ctx, key)
		})
	}

	if s.eventSink != nil {
		if err := s.eventSink.RuleDeleted(ctx, id); err != nil {
			s.logger.Warn("rule deleted event failed", "rule_id", id, "error", err)
		}
	}

	return nil
}

func (s *service) ListRules(ctx context.Context, callerID uuid.UUID, filters RuleListFilters) ([]*Rule, error) {
	rules, err := s.repository.ListRules(ctx, filters)
	if err != nil {
		return nil, err
	}

	visible := make([]*Rule, 0, len(rules))
	for _, rule := range rules {
		if s.canRead(ctx, rule, callerID) {
			visible = append(visible, rule)
		}
	}
	return visible, nil
}

// Version operations

func (s *service) PublishVersion(ctx context.Context, req PublishVersionRequest) (*PublishResult, error) {
	rule, err := s.repository.GetRule(ctx, req.RuleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireWriteAccess(ctx, rule, req.AuthorID); err != nil {
		return nil, err
	}
	if req.Content == "" {
		return nil, fmt.Errorf("content is required")
	}

	version := req.Version
	if version == "" {
		version, err = IncrementPatch(rule.Version)
		if err != nil {
			return nil, &VersionError{RuleID: rule.ID, Version: rule.Version, Op: "increment", Err: err}
		}
	} else {
		if err := ValidateVersion(version); err != nil {
			return nil, err
		}
		if rule.Version != "" {
			cmp, err := CompareVersions(version, rule.Version)
			if err != nil {
				return nil, err
			}
			if cmp <= 0 {
				return nil, &VersionError{RuleID: rule.ID, Version: version, Op: "publish", Err: ErrVersionNotNewer}
			}
		}
	}

	// Check-then-write: a concurrent publish can still slip past this check,
	// in which case the unique (rule_id, version) constraint decides the
	// winner at insert time.
	if _, err := s.repository.GetVersion(ctx, rule.ID, version); err == nil {
		return nil, &VersionError{RuleID: rule.ID, Version: version, Op: "publish", Err: ErrVersionExists}
	} else if !errors.Is(err, ErrVersionNotFound) {
		return nil, &VersionError{RuleID: rule.ID, Version: version, Op: "publish", Err: err}
	}

	result, err := s.writeVersion(ctx, rule, version, req.Content, req.Changelog, req.AuthorID)
	if err != nil {
		return nil, err
	}

	rule.Version = result.Version
	rule.LatestVersionID = &result.VersionID
	rule.UpdatedAt = result.PublishedAt

	if err := s.repository.UpdateRule(ctx, rule); err != nil {
		// The version row exists but the latest pointer was not advanced.
		// Left as-is: the next successful publish overwrites the pointer.
		s.logger.Warn("latest pointer update failed after version insert",
			"rule_id", rule.ID, "version", result.Version, "error", err)
		return nil, &VersionError{RuleID: rule.ID, Version: result.Version, Op: "publish", Err: err}
	}

	if s.eventSink != nil {
		ver := &RuleVersion{ID: result.VersionID, RuleID: rule.ID, Version: result.Version}
		if err := s.eventSink.VersionPublished(ctx, rule, ver); err != nil {
			s.logger.Warn("version published event failed", "rule_id", rule.ID, "error", err)
		}
	}

	return result, nil
}

// writeVersion performs the blob-then-metadata write sequence shared by
// CreateRule and PublishVersion. The blob goes first: it is cheap to orphan
// and safe to retry, while the RuleVersion row is what makes the version
// visible. On row insert failure the remembered blob key is deleted
// best-effort before the original error is surfaced.
func (s *service) writeVersion(ctx context.Context, rule *Rule, version, content, changelog string, authorID uuid.UUID) (*PublishResult, error) {
	backend := s.blobStores[s.defaultBackend]

	versionID := uuid.New()
	key := s.keys.VersionKey(rule.ID, versionID)
	contentHash := hashContent(content)
	now := time.Now().UTC()

	if err := backend.Upload(ctx, key, strings.NewReader(content)); err != nil {
		// No metadata written yet; nothing to unwind.
		return nil, &StorageError{Backend: s.defaultBackend, Key: key, Op: "upload", Err: err}
	}

	row := &RuleVersion{
		ID:          versionID,
		RuleID:      rule.ID,
		Version:     version,
		Changelog:   changelog,
		ContentHash: contentHash,
		BlobKey:     key,
		CreatedBy:   authorID,
		CreatedAt:   now,
	}

	if err := s.repository.CreateVersion(ctx, row); err != nil {
		s.compensate(ctx, "delete orphaned blob", func() error {
			return backend.Delete(ctx, key)
		})
		return nil, &VersionError{RuleID: rule.ID, Version: version, Op: "publish", Err: err}
	}

	return &PublishResult{
		Version:     version,
		VersionID:   versionID,
		PublishedAt: now,
	}, nil
}

// compensate runs a best-effort cleanup step. Failures are logged and never
// escalate: the original error always reaches the caller unchanged.
func (s *service) compensate(ctx context.Context, op string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.Warn("compensation failed", "op", op, "error", err)
	}
}

func (s *service) GetVersion(ctx context.Context, callerID, ruleID uuid.UUID, version string) (*RuleVersion, error) {
	rule, err := s.repository.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireReadAccess(ctx, rule, callerID); err != nil {
		return nil, err
	}
	return s.resolveVersion(ctx, rule, version)
}

func (s *service) ListVersions(ctx context.Context, callerID, ruleID uuid.UUID) ([]*RuleVersion, error) {
	rule, err := s.repository.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireReadAccess(ctx, rule, callerID); err != nil {
		return nil, err
	}
	return s.repository.ListVersions(ctx, ruleID)
}

// resolveVersion maps "latest" through the rule's latest pointer, otherwise
// looks up the exact version row.
func (s *service) resolveVersion(ctx context.Context, rule *Rule, version string) (*RuleVersion, error) {
	if version == VersionLatest || version == "" {
		if rule.LatestVersionID == nil {
			return nil, &VersionError{RuleID: rule.ID, Version: version, Op: "resolve", Err: ErrVersionNotFound}
		}
		return s.repository.GetVersionByID(ctx, *rule.LatestVersionID)
	}
	return s.repository.GetVersion(ctx, rule.ID, version)
}

// Content operations

func (s *service) FetchContent(ctx context.Context, req FetchContentRequest) (*RuleContent, error) {
	rule, err := s.repository.GetRule(ctx, req.RuleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireReadAccess(ctx, rule, req.CallerID); err != nil {
		return nil, err
	}

	ver, err := s.resolveVersion(ctx, rule, req.Version)
	if err != nil {
		return nil, err
	}

	backend := s.blobStores[s.defaultBackend]
	reader, err := backend.Download(ctx, ver.BlobKey)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			// Metadata points at storage that is gone. Distinct from a
			// missing version row but equally fatal.
			return nil, &VersionError{RuleID: rule.ID, Version: ver.Version, Op: "fetch", Err: ErrContentMissing}
		}
		return nil, &StorageError{Backend: s.defaultBackend, Key: ver.BlobKey, Op: "download", Err: err}
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &StorageError{Backend: s.defaultBackend, Key: ver.BlobKey, Op: "download", Err: err}
	}

	if err := s.repository.IncrementDownloads(ctx, rule.ID); err != nil {
		s.logger.Warn("download counter update failed", "rule_id", rule.ID, "error", err)
	}

	if s.eventSink != nil {
		if err := s.eventSink.ContentFetched(ctx, rule.ID, ver.Version); err != nil {
			s.logger.Warn("content fetched event failed", "rule_id", rule.ID, "error", err)
		}
	}

	return &RuleContent{
		Version:     ver.Version,
		Content:     string(data),
		ContentHash: ver.ContentHash,
	}, nil
}

// Team operations

func (s *service) CreateTeam(ctx context.Context, req CreateTeamRequest) (*Team, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("team name is required")
	}

	now := time.Now().UTC()
	team := &Team{
		ID:        uuid.New(),
		Name:      req.Name,
		OwnerID:   req.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repository.CreateTeam(ctx, team); err != nil {
		return nil, err
	}

	member := &TeamMember{
		TeamID:    team.ID,
		UserID:    req.OwnerID,
		Role:      TeamRoleOwner,
		CreatedAt: now,
	}
	if err := s.repository.AddTeamMember(ctx, member); err != nil {
		// A team without its owner member is unusable; unwind.
		s.compensate(ctx, "delete team row", func() error {
			return s.repository.DeleteTeam(ctx, team.ID)
		})
		return nil, err
	}

	return team, nil
}

func (s *service) AddTeamMember(ctx context.Context, callerID, teamID, userID uuid.UUID, role TeamRole) error {
	member, err := s.repository.GetTeamMember(ctx, teamID, callerID)
	if err != nil {
		if errors.Is(err, ErrNotTeamMember) {
			return ErrForbidden
		}
		return err
	}
	if member.Role != TeamRoleOwner {
		return ErrForbidden
	}

	return s.repository.AddTeamMember(ctx, &TeamMember{
		TeamID:    teamID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	})
}

// Star operations

func (s *service) StarRule(ctx context.Context, callerID, ruleID uuid.UUID) error {
	rule, err := s.repository.GetRule(ctx, ruleID)
	if err != nil {
		return err
	}
	if err := s.requireReadAccess(ctx, rule, callerID); err != nil {
		return err
	}

	return s.repository.CreateStar(ctx, &Star{
		RuleID:    ruleID,
		UserID:    callerID,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *service) UnstarRule(ctx context.Context, callerID, ruleID uuid.UUID) error {
	if _, err := s.repository.GetRule(ctx, ruleID); err != nil {
		return err
	}
	return s.repository.DeleteStar(ctx, ruleID, callerID)
}

// Permission helpers

func (s *service) canRead(ctx context.Context, rule *Rule, callerID uuid.UUID) bool {
	switch rule.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityPrivate:
		return rule.OwnerID == callerID
	case VisibilityTeam:
		if rule.OwnerID == callerID {
			return true
		}
		if rule.TeamID == nil {
			return false
		}
		_, err := s.repository.GetTeamMember(ctx, *rule.TeamID, callerID)
		return err == nil
	}
	return false
}

func (s *service) canWrite(ctx context.Context, rule *Rule, callerID uuid.UUID) bool {
	if rule.OwnerID == callerID {
		return true
	}
	if rule.Visibility == VisibilityTeam && rule.TeamID != nil {
		member, err := s.repository.GetTeamMember(ctx, *rule.TeamID, callerID)
		return err == nil && member.Role.CanPublish()
	}
	return false
}

func (s *service) requireReadAccess(ctx context.Context, rule *Rule, callerID uuid.UUID) error {
	if !s.canRead(ctx, rule, callerID) {
		return &RuleError{RuleID: rule.ID, Op: "read", Err: ErrForbidden}
	}
	return nil
}

func (s *service) requireWriteAccess(ctx context.Context, rule *Rule, callerID uuid.UUID) error {
	if !s.canWrite(ctx, rule, callerID) {
		return &RuleError{RuleID: rule.ID, Op: "write", Err: ErrForbidden}
	}
	return nil
}

func (s *service) requireDeleteAccess(ctx context.Context, rule *Rule, callerID uuid.UUID) error {
	if rule.OwnerID == callerID {
		return nil
	}
	if rule.Visibility == VisibilityTeam && rule.TeamID != nil {
		member, err := s.repository.GetTeamMember(ctx, *rule.TeamID, callerID)
		if err == nil && member.Role == TeamRoleOwner {
			return nil
		}
	}
	return &RuleError{RuleID: rule.ID, Op: "delete", Err: ErrForbidden}
}

func (s *service) requireTeamPublisher(ctx context.Context, teamID, userID uuid.UUID) error {
	member, err := s.repository.GetTeamMember(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, ErrNotTeamMember) {
			return ErrForbidden
		}
		return err
	}
	if !member.Role.CanPublish() {
		return ErrForbidden
	}
	return nil
}
