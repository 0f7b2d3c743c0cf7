package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zxcvhub/registry/pkg/ruleregistry"
)

// Repository implements ruleregistry.Repository using in-memory storage.
// Uniqueness of (namespace, name) and (rule_id, version) is enforced under
// the same lock that performs the insert, mirroring what the unique indexes
// do in the Postgres implementation.
type Repository struct {
	mu               sync.RWMutex
	rules            map[uuid.UUID]*ruleregistry.Rule
	rulesByName      map[string]uuid.UUID    // "namespace/name" -> rule_id
	versions         map[uuid.UUID]*ruleregistry.RuleVersion
	versionsByRule   map[uuid.UUID][]uuid.UUID // rule_id -> []version_id
	versionByRuleVer map[string]uuid.UUID      // "rule_id:version" -> version_id
	teams            map[uuid.UUID]*ruleregistry.Team
	members          map[string]*ruleregistry.TeamMember // "team_id:user_id"
	stars            map[string]*ruleregistry.Star       // "rule_id:user_id"
}

// New creates a new in-memory repository
func New() ruleregistry.Repository {
	return &Repository{
		rules:            make(map[uuid.UUID]*ruleregistry.Rule),
		rulesByName:      make(map[string]uuid.UUID),
		versions:         make(map[uuid.UUID]*ruleregistry.RuleVersion),
		versionsByRule:   make(map[uuid.UUID][]uuid.UUID),
		versionByRuleVer: make(map[string]uuid.UUID),
		teams:            make(map[uuid.UUID]*ruleregistry.Team),
		members:          make(map[string]*ruleregistry.TeamMember),
		stars:            make(map[string]*ruleregistry.Star),
	}
}

func nameKey(namespace, name string) string {
	return namespace + "/" + name
}

func pairKey(a uuid.UUID, b string) string {
	return a.String() + ":" + b
}

func copyRule(r *ruleregistry.Rule) *ruleregistry.Rule {
	ruleCopy := *r
	if r.Tags != nil {
		ruleCopy.Tags = append([]string(nil), r.Tags...)
	}
	if r.TeamID != nil {
		teamID := *r.TeamID
		ruleCopy.TeamID = &teamID
	}
	if r.LatestVersionID != nil {
		latestID := *r.LatestVersionID
		ruleCopy.LatestVersionID = &latestID
	}
	return &ruleCopy
}

// Rule operations

func (r *Repository) CreateRule(ctx context.Context, rule *ruleregistry.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := nameKey(rule.Namespace, rule.Name)
	if _, exists := r.rulesByName[key]; exists {
		return ruleregistry.ErrRuleExists
	}

	r.rules[rule.ID] = copyRule(rule)
	r.rulesByName[key] = rule.ID

	return nil
}

func (r *Repository) GetRule(ctx context.Context, id uuid.UUID) (*ruleregistry.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, exists := r.rules[id]
	if !exists {
		return nil, ruleregistry.ErrRuleNotFound
	}
	return copyRule(rule), nil
}

func (r *Repository) GetRuleByName(ctx context.Context, namespace, name string) (*ruleregistry.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.rulesByName[nameKey(namespace, name)]
	if !exists {
		return nil, ruleregistry.ErrRuleNotFound
	}
	return copyRule(r.rules[id]), nil
}

func (r *Repository) UpdateRule(ctx context.Context, rule *ruleregistry.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.rules[rule.ID]
	if !exists {
		return ruleregistry.ErrRuleNotFound
	}

	// Counters are owned by the repository; keep them across metadata writes.
	ruleCopy := copyRule(rule)
	ruleCopy.Downloads = existing.Downloads
	ruleCopy.Stars = existing.Stars
	r.rules[rule.ID] = ruleCopy

	return nil
}

func (r *Repository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, exists := r.rules[id]
	if !exists {
		return ruleregistry.ErrRuleNotFound
	}

	delete(r.rulesByName, nameKey(rule.Namespace, rule.Name))
	delete(r.rules, id)
	return nil
}

func (r *Repository) ListRules(ctx context.Context, filters ruleregistry.RuleListFilters) ([]*ruleregistry.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*ruleregistry.Rule
	for _, rule := range r.rules {
		if !matchesFilters(rule, filters) {
			continue
		}
		result = append(result, copyRule(rule))
	}

	// Sort by updated_at descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	if filters.Offset != nil && *filters.Offset > 0 {
		if *filters.Offset >= len(result) {
			return []*ruleregistry.Rule{}, nil
		}
		result = result[*filters.Offset:]
	}
	if filters.Limit != nil && *filters.Limit > 0 && *filters.Limit < len(result) {
		result = result[:*filters.Limit]
	}

	return result, nil
}

func matchesFilters(rule *ruleregistry.Rule, filters ruleregistry.RuleListFilters) bool {
	if filters.OwnerID != nil && rule.OwnerID != *filters.OwnerID {
		return false
	}
	if filters.TeamID != nil && (rule.TeamID == nil || *rule.TeamID != *filters.TeamID) {
		return false
	}
	if filters.Namespace != nil && rule.Namespace != *filters.Namespace {
		return false
	}
	if filters.Visibility != nil && rule.Visibility != *filters.Visibility {
		return false
	}
	if filters.Tag != nil {
		found := false
		for _, tag := range rule.Tags {
			if tag == *filters.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filters.Search != nil {
		needle := strings.ToLower(*filters.Search)
		if !strings.Contains(strings.ToLower(rule.Name), needle) &&
			!strings.Contains(strings.ToLower(rule.Description), needle) {
			return false
		}
	}
	return true
}

// Version operations

func (r *Repository) CreateVersion(ctx context.Context, version *ruleregistry.RuleVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[version.RuleID]; !exists {
		return ruleregistry.ErrRuleNotFound
	}

	key := pairKey(version.RuleID, version.Version)
	if _, exists := r.versionByRuleVer[key]; exists {
		return ruleregistry.ErrVersionExists
	}

	versionCopy := *version
	r.versions[version.ID] = &versionCopy
	r.versionsByRule[version.RuleID] = append(r.versionsByRule[version.RuleID], version.ID)
	r.versionByRuleVer[key] = version.ID

	return nil
}

func (r *Repository) GetVersion(ctx context.Context, ruleID uuid.UUID, version string) (*ruleregistry.RuleVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.versionByRuleVer[pairKey(ruleID, version)]
	if !exists {
		return nil, ruleregistry.ErrVersionNotFound
	}
	versionCopy := *r.versions[id]
	return &versionCopy, nil
}

func (r *Repository) GetVersionByID(ctx context.Context, id uuid.UUID) (*ruleregistry.RuleVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	version, exists := r.versions[id]
	if !exists {
		return nil, ruleregistry.ErrVersionNotFound
	}
	versionCopy := *version
	return &versionCopy, nil
}

func (r *Repository) ListVersions(ctx context.Context, ruleID uuid.UUID) ([]*ruleregistry.RuleVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.versionsByRule[ruleID]
	result := make([]*ruleregistry.RuleVersion, 0, len(ids))
	for _, id := range ids {
		if version, exists := r.versions[id]; exists {
			versionCopy := *version
			result = append(result, &versionCopy)
		}
	}

	// Sort by created_at descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) DeleteVersionsByRule(ctx context.Context, ruleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.versionsByRule[ruleID] {
		if version, exists := r.versions[id]; exists {
			delete(r.versionByRuleVer, pairKey(ruleID, version.Version))
			delete(r.versions, id)
		}
	}
	delete(r.versionsByRule, ruleID)
	return nil
}

// Team operations

func (r *Repository) CreateTeam(ctx context.Context, team *ruleregistry.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	teamCopy := *team
	r.teams[team.ID] = &teamCopy
	return nil
}

func (r *Repository) GetTeam(ctx context.Context, id uuid.UUID) (*ruleregistry.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	team, exists := r.teams[id]
	if !exists {
		return nil, ruleregistry.ErrTeamNotFound
	}
	teamCopy := *team
	return &teamCopy, nil
}

func (r *Repository) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.teams[id]; !exists {
		return ruleregistry.ErrTeamNotFound
	}
	delete(r.teams, id)
	for key, member := range r.members {
		if member.TeamID == id {
			delete(r.members, key)
		}
	}
	return nil
}

func (r *Repository) AddTeamMember(ctx context.Context, member *ruleregistry.TeamMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.teams[member.TeamID]; !exists {
		return ruleregistry.ErrTeamNotFound
	}

	memberCopy := *member
	r.members[pairKey(member.TeamID, member.UserID.String())] = &memberCopy
	return nil
}

func (r *Repository) GetTeamMember(ctx context.Context, teamID, userID uuid.UUID) (*ruleregistry.TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.teams[teamID]; !exists {
		return nil, ruleregistry.ErrTeamNotFound
	}

	member, exists := r.members[pairKey(teamID, userID.String())]
	if !exists {
		return nil, fmt.Errorf("%w: user %s in team %s", ruleregistry.ErrNotTeamMember, userID, teamID)
	}
	memberCopy := *member
	return &memberCopy, nil
}

// Star operations

func (r *Repository) CreateStar(ctx context.Context, star *ruleregistry.Star) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, exists := r.rules[star.RuleID]
	if !exists {
		return ruleregistry.ErrRuleNotFound
	}

	key := pairKey(star.RuleID, star.UserID.String())
	if _, exists := r.stars[key]; exists {
		return ruleregistry.ErrAlreadyStarred
	}

	starCopy := *star
	r.stars[key] = &starCopy
	rule.Stars++
	return nil
}

func (r *Repository) DeleteStar(ctx context.Context, ruleID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, exists := r.rules[ruleID]
	if !exists {
		return ruleregistry.ErrRuleNotFound
	}

	key := pairKey(ruleID, userID.String())
	if _, exists := r.stars[key]; !exists {
		return ruleregistry.ErrNotStarred
	}

	delete(r.stars, key)
	rule.Stars--
	return nil
}

func (r *Repository) DeleteStarsByRule(ctx context.Context, ruleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, star := range r.stars {
		if star.RuleID == ruleID {
			delete(r.stars, key)
		}
	}
	if rule, exists := r.rules[ruleID]; exists {
		rule.Stars = 0
	}
	return nil
}

// Counter operations

func (r *Repository) IncrementDownloads(ctx context.Context, ruleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, exists := r.rules[ruleID]
	if !exists {
		return ruleregistry.ErrRuleNotFound
	}
	rule.Downloads++
	return nil
}
