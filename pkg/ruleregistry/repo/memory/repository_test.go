package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxcvhub/registry/pkg/ruleregistry"
)

func newTestRule(namespace, name string) *ruleregistry.Rule {
	now := time.Now().UTC()
	return &ruleregistry.Rule{
		ID:         uuid.New(),
		Name:       name,
		Namespace:  namespace,
		OwnerID:    uuid.New(),
		Visibility: ruleregistry.VisibilityPublic,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestRuleCRUD(t *testing.T) {
	repo := New()
	ctx := context.Background()

	rule := newTestRule("acme", "no-console-log")
	require.NoError(t, repo.CreateRule(ctx, rule))

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetRule(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, rule.ID, got.ID)
		assert.Equal(t, rule.Name, got.Name)
	})

	t.Run("get by name", func(t *testing.T) {
		got, err := repo.GetRuleByName(ctx, "acme", "no-console-log")
		require.NoError(t, err)
		assert.Equal(t, rule.ID, got.ID)
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		dupe := newTestRule("acme", "no-console-log")
		err := repo.CreateRule(ctx, dupe)
		assert.ErrorIs(t, err, ruleregistry.ErrRuleExists)
	})

	t.Run("same name in another namespace is fine", func(t *testing.T) {
		other := newTestRule("globex", "no-console-log")
		assert.NoError(t, repo.CreateRule(ctx, other))
	})

	t.Run("returned rules are copies", func(t *testing.T) {
		got, err := repo.GetRule(ctx, rule.ID)
		require.NoError(t, err)
		got.Name = "mutated"

		again, err := repo.GetRule(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, "no-console-log", again.Name)
	})

	t.Run("update preserves counters", func(t *testing.T) {
		require.NoError(t, repo.IncrementDownloads(ctx, rule.ID))

		updated, err := repo.GetRule(ctx, rule.ID)
		require.NoError(t, err)
		updated.Description = "new description"
		updated.Downloads = 999 // callers cannot write counters
		require.NoError(t, repo.UpdateRule(ctx, updated))

		got, err := repo.GetRule(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, "new description", got.Description)
		assert.Equal(t, int64(1), got.Downloads)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteRule(ctx, rule.ID))

		_, err := repo.GetRule(ctx, rule.ID)
		assert.ErrorIs(t, err, ruleregistry.ErrRuleNotFound)
		_, err = repo.GetRuleByName(ctx, "acme", "no-console-log")
		assert.ErrorIs(t, err, ruleregistry.ErrRuleNotFound)
	})
}

func TestVersionUniqueness(t *testing.T) {
	repo := New()
	ctx := context.Background()

	rule := newTestRule("acme", "prefer-const")
	require.NoError(t, repo.CreateRule(ctx, rule))

	version := &ruleregistry.RuleVersion{
		ID:        uuid.New(),
		RuleID:    rule.ID,
		Version:   "1.0.0",
		BlobKey:   "rules/x/versions/y.md",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateVersion(ctx, version))

	dupe := &ruleregistry.RuleVersion{
		ID:      uuid.New(),
		RuleID:  rule.ID,
		Version: "1.0.0",
	}
	err := repo.CreateVersion(ctx, dupe)
	assert.ErrorIs(t, err, ruleregistry.ErrVersionExists)

	// The loser's row never landed.
	versions, err := repo.ListVersions(ctx, rule.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
	assert.Equal(t, version.ID, versions[0].ID)
}

func TestVersionLookups(t *testing.T) {
	repo := New()
	ctx := context.Background()

	rule := newTestRule("acme", "sorted-imports")
	require.NoError(t, repo.CreateRule(ctx, rule))

	v1 := &ruleregistry.RuleVersion{ID: uuid.New(), RuleID: rule.ID, Version: "1.0.0", CreatedAt: time.Now().UTC()}
	v2 := &ruleregistry.RuleVersion{ID: uuid.New(), RuleID: rule.ID, Version: "1.0.1", CreatedAt: time.Now().UTC().Add(time.Second)}
	require.NoError(t, repo.CreateVersion(ctx, v1))
	require.NoError(t, repo.CreateVersion(ctx, v2))

	got, err := repo.GetVersion(ctx, rule.ID, "1.0.1")
	require.NoError(t, err)
	assert.Equal(t, v2.ID, got.ID)

	got, err = repo.GetVersionByID(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", got.Version)

	_, err = repo.GetVersion(ctx, rule.ID, "9.9.9")
	assert.ErrorIs(t, err, ruleregistry.ErrVersionNotFound)

	versions, err := repo.ListVersions(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "1.0.1", versions[0].Version) // newest first

	require.NoError(t, repo.DeleteVersionsByRule(ctx, rule.ID))
	versions, err = repo.ListVersions(ctx, rule.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestListRulesFilters(t *testing.T) {
	repo := New()
	ctx := context.Background()

	ownerID := uuid.New()
	teamID := uuid.New()

	a := newTestRule("acme", "one")
	a.OwnerID = ownerID
	a.Tags = []string{"lint"}
	a.Description = "formatting checks"

	b := newTestRule("acme", "two")
	b.TeamID = &teamID
	b.Visibility = ruleregistry.VisibilityTeam

	c := newTestRule("globex", "three")

	for _, rule := range []*ruleregistry.Rule{a, b, c} {
		require.NoError(t, repo.CreateRule(ctx, rule))
	}

	t.Run("by owner", func(t *testing.T) {
		got, err := repo.ListRules(ctx, ruleregistry.RuleListFilters{OwnerID: &ownerID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a.ID, got[0].ID)
	})

	t.Run("by namespace", func(t *testing.T) {
		ns := "acme"
		got, err := repo.ListRules(ctx, ruleregistry.RuleListFilters{Namespace: &ns})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by team", func(t *testing.T) {
		got, err := repo.ListRules(ctx, ruleregistry.RuleListFilters{TeamID: &teamID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b.ID, got[0].ID)
	})

	t.Run("by tag", func(t *testing.T) {
		tag := "lint"
		got, err := repo.ListRules(ctx, ruleregistry.RuleListFilters{Tag: &tag})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a.ID, got[0].ID)
	})

	t.Run("by search", func(t *testing.T) {
		q := "FORMATTING"
		got, err := repo.ListRules(ctx, ruleregistry.RuleListFilters{Search: &q})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a.ID, got[0].ID)
	})

	t.Run("limit and offset", func(t *testing.T) {
		limit := 2
		got, err := repo.ListRules(ctx, ruleregistry.RuleListFilters{Limit: &limit})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		offset := 2
		got, err = repo.ListRules(ctx, ruleregistry.RuleListFilters{Offset: &offset})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestTeamMembership(t *testing.T) {
	repo := New()
	ctx := context.Background()

	team := &ruleregistry.Team{ID: uuid.New(), Name: "platform", OwnerID: uuid.New(), CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateTeam(ctx, team))

	userID := uuid.New()
	member := &ruleregistry.TeamMember{TeamID: team.ID, UserID: userID, Role: ruleregistry.TeamRoleEditor}
	require.NoError(t, repo.AddTeamMember(ctx, member))

	got, err := repo.GetTeamMember(ctx, team.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, ruleregistry.TeamRoleEditor, got.Role)

	// Missing member vs missing team are distinguishable.
	_, err = repo.GetTeamMember(ctx, team.ID, uuid.New())
	assert.ErrorIs(t, err, ruleregistry.ErrNotTeamMember)

	_, err = repo.GetTeamMember(ctx, uuid.New(), userID)
	assert.ErrorIs(t, err, ruleregistry.ErrTeamNotFound)

	// Re-adding updates the role in place.
	member.Role = ruleregistry.TeamRoleOwner
	require.NoError(t, repo.AddTeamMember(ctx, member))
	got, err = repo.GetTeamMember(ctx, team.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, ruleregistry.TeamRoleOwner, got.Role)

	require.NoError(t, repo.DeleteTeam(ctx, team.ID))
	_, err = repo.GetTeamMember(ctx, team.ID, userID)
	assert.ErrorIs(t, err, ruleregistry.ErrTeamNotFound)
}

func TestStarBookkeeping(t *testing.T) {
	repo := New()
	ctx := context.Background()

	rule := newTestRule("acme", "starred")
	require.NoError(t, repo.CreateRule(ctx, rule))

	alice := uuid.New()
	bob := uuid.New()

	require.NoError(t, repo.CreateStar(ctx, &ruleregistry.Star{RuleID: rule.ID, UserID: alice}))
	require.NoError(t, repo.CreateStar(ctx, &ruleregistry.Star{RuleID: rule.ID, UserID: bob}))

	err := repo.CreateStar(ctx, &ruleregistry.Star{RuleID: rule.ID, UserID: alice})
	assert.ErrorIs(t, err, ruleregistry.ErrAlreadyStarred)

	got, err := repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Stars)

	require.NoError(t, repo.DeleteStar(ctx, rule.ID, alice))
	got, err = repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Stars)

	err = repo.DeleteStar(ctx, rule.ID, alice)
	assert.ErrorIs(t, err, ruleregistry.ErrNotStarred)

	require.NoError(t, repo.DeleteStarsByRule(ctx, rule.ID))
	got, err = repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Stars)
}
