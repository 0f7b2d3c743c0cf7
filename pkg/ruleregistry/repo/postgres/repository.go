package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zxcvhub/registry/pkg/ruleregistry"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements ruleregistry.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) ruleregistry.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) ruleregistry.Repository {
	return &Repository{db: pool}
}

// classifyError maps driver errors onto the domain sentinels so the service
// can tell conflicts from everything else. Unique-violation constraint names
// decide whether the duplicate is a rule name or a version number.
func classifyError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "rule_versions") {
				return ruleregistry.ErrVersionExists
			}
			if strings.Contains(pgErr.ConstraintName, "stars") {
				return ruleregistry.ErrAlreadyStarred
			}
			if strings.Contains(pgErr.ConstraintName, "rules") {
				return ruleregistry.ErrRuleExists
			}
			return fmt.Errorf("duplicate entry in %s: %w", operation, err)
		case "23503": // foreign_key_violation
			return ruleregistry.ErrRuleNotFound
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Rule operations

func (r *Repository) CreateRule(ctx context.Context, rule *ruleregistry.Rule) error {
	query := `
		INSERT INTO rules (
			id, name, namespace, owner_id, team_id, visibility, description,
			tags, version, latest_version_id, downloads, stars, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		rule.ID, rule.Name, rule.Namespace, rule.OwnerID, rule.TeamID,
		rule.Visibility, rule.Description, rule.Tags, rule.Version,
		rule.LatestVersionID, rule.Downloads, rule.Stars, rule.CreatedAt, rule.UpdatedAt)

	if err != nil {
		return classifyError("create rule", err)
	}

	return nil
}

const ruleColumns = `
	id, name, namespace, owner_id, team_id, visibility, description,
	tags, version, latest_version_id, downloads, stars, created_at, updated_at`

func scanRule(row pgx.Row) (*ruleregistry.Rule, error) {
	var rule ruleregistry.Rule
	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Namespace, &rule.OwnerID, &rule.TeamID,
		&rule.Visibility, &rule.Description, &rule.Tags, &rule.Version,
		&rule.LatestVersionID, &rule.Downloads, &rule.Stars, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ruleregistry.ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

func (r *Repository) GetRule(ctx context.Context, id uuid.UUID) (*ruleregistry.Rule, error) {
	query := `SELECT` + ruleColumns + ` FROM rules WHERE id = $1`
	return scanRule(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) GetRuleByName(ctx context.Context, namespace, name string) (*ruleregistry.Rule, error) {
	query := `SELECT` + ruleColumns + ` FROM rules WHERE namespace = $1 AND name = $2`
	return scanRule(r.db.QueryRow(ctx, query, namespace, name))
}

func (r *Repository) UpdateRule(ctx context.Context, rule *ruleregistry.Rule) error {
	query := `
		UPDATE rules SET
			visibility = $2, description = $3, tags = $4, version = $5,
			latest_version_id = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		rule.ID, rule.Visibility, rule.Description, rule.Tags,
		rule.Version, rule.LatestVersionID, rule.UpdatedAt)
	if err != nil {
		return classifyError("update rule", err)
	}
	if tag.RowsAffected() == 0 {
		return ruleregistry.ErrRuleNotFound
	}

	return nil
}

func (r *Repository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return classifyError("delete rule", err)
	}
	if tag.RowsAffected() == 0 {
		return ruleregistry.ErrRuleNotFound
	}
	return nil
}

func (r *Repository) ListRules(ctx context.Context, filters ruleregistry.RuleListFilters) ([]*ruleregistry.Rule, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.OwnerID != nil {
		conds = append(conds, "owner_id = "+arg(*filters.OwnerID))
	}
	if filters.TeamID != nil {
		conds = append(conds, "team_id = "+arg(*filters.TeamID))
	}
	if filters.Namespace != nil {
		conds = append(conds, "namespace = "+arg(*filters.Namespace))
	}
	if filters.Visibility != nil {
		conds = append(conds, "visibility = "+arg(*filters.Visibility))
	}
	if filters.Tag != nil {
		conds = append(conds, arg(*filters.Tag)+" = ANY(tags)")
	}
	if filters.Search != nil {
		p := arg("%" + *filters.Search + "%")
		conds = append(conds, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}

	query := `SELECT` + ruleColumns + ` FROM rules`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if filters.Limit != nil && *filters.Limit > 0 {
		query += " LIMIT " + arg(*filters.Limit)
	}
	if filters.Offset != nil && *filters.Offset > 0 {
		query += " OFFSET " + arg(*filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyError("list rules", err)
	}
	defer rows.Close()

	var rules []*ruleregistry.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// Version operations

func (r *Repository) CreateVersion(ctx context.Context, version *ruleregistry.RuleVersion) error {
	query := `
		INSERT INTO rule_versions (
			id, rule_id, version, changelog, content_hash, blob_key, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		version.ID, version.RuleID, version.Version, version.Changelog,
		version.ContentHash, version.BlobKey, version.CreatedBy, version.CreatedAt)

	if err != nil {
		return classifyError("create version", err)
	}

	return nil
}

const versionColumns = `
	id, rule_id, version, changelog, content_hash, blob_key, created_by, created_at`

func scanVersion(row pgx.Row) (*ruleregistry.RuleVersion, error) {
	var version ruleregistry.RuleVersion
	err := row.Scan(
		&version.ID, &version.RuleID, &version.Version, &version.Changelog,
		&version.ContentHash, &version.BlobKey, &version.CreatedBy, &version.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ruleregistry.ErrVersionNotFound
		}
		return nil, err
	}
	return &version, nil
}

func (r *Repository) GetVersion(ctx context.Context, ruleID uuid.UUID, version string) (*ruleregistry.RuleVersion, error) {
	query := `SELECT` + versionColumns + ` FROM rule_versions WHERE rule_id = $1 AND version = $2`
	return scanVersion(r.db.QueryRow(ctx, query, ruleID, version))
}

func (r *Repository) GetVersionByID(ctx context.Context, id uuid.UUID) (*ruleregistry.RuleVersion, error) {
	query := `SELECT` + versionColumns + ` FROM rule_versions WHERE id = $1`
	return scanVersion(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) ListVersions(ctx context.Context, ruleID uuid.UUID) ([]*ruleregistry.RuleVersion, error) {
	query := `SELECT` + versionColumns + ` FROM rule_versions WHERE rule_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ruleID)
	if err != nil {
		return nil, classifyError("list versions", err)
	}
	defer rows.Close()

	var versions []*ruleregistry.RuleVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}

	return versions, rows.Err()
}

func (r *Repository) DeleteVersionsByRule(ctx context.Context, ruleID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM rule_versions WHERE rule_id = $1`, ruleID)
	if err != nil {
		return classifyError("delete versions", err)
	}
	return nil
}

// Team operations

func (r *Repository) CreateTeam(ctx context.Context, team *ruleregistry.Team) error {
	query := `
		INSERT INTO teams (id, name, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		team.ID, team.Name, team.OwnerID, team.CreatedAt, team.UpdatedAt)
	if err != nil {
		return classifyError("create team", err)
	}
	return nil
}

func (r *Repository) GetTeam(ctx context.Context, id uuid.UUID) (*ruleregistry.Team, error) {
	query := `SELECT id, name, owner_id, created_at, updated_at FROM teams WHERE id = $1`

	var team ruleregistry.Team
	err := r.db.QueryRow(ctx, query, id).Scan(
		&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ruleregistry.ErrTeamNotFound
		}
		return nil, err
	}

	return &team, nil
}

func (r *Repository) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return classifyError("delete team", err)
	}
	if tag.RowsAffected() == 0 {
		return ruleregistry.ErrTeamNotFound
	}
	return nil
}

func (r *Repository) AddTeamMember(ctx context.Context, member *ruleregistry.TeamMember) error {
	query := `
		INSERT INTO team_members (team_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	_, err := r.db.Exec(ctx, query,
		member.TeamID, member.UserID, member.Role, member.CreatedAt)
	if err != nil {
		return classifyError("add team member", err)
	}
	return nil
}

func (r *Repository) GetTeamMember(ctx context.Context, teamID, userID uuid.UUID) (*ruleregistry.TeamMember, error) {
	query := `SELECT team_id, user_id, role, created_at FROM team_members WHERE team_id = $1 AND user_id = $2`

	var member ruleregistry.TeamMember
	err := r.db.QueryRow(ctx, query, teamID, userID).Scan(
		&member.TeamID, &member.UserID, &member.Role, &member.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, terr := r.GetTeam(ctx, teamID); terr != nil {
				return nil, terr
			}
			return nil, fmt.Errorf("%w: user %s in team %s", ruleregistry.ErrNotTeamMember, userID, teamID)
		}
		return nil, err
	}

	return &member, nil
}

// Star operations

func (r *Repository) CreateStar(ctx context.Context, star *ruleregistry.Star) error {
	query := `INSERT INTO stars (rule_id, user_id, created_at) VALUES ($1, $2, $3)`

	_, err := r.db.Exec(ctx, query, star.RuleID, star.UserID, star.CreatedAt)
	if err != nil {
		return classifyError("create star", err)
	}

	// Counter update is a separate statement; the star row is the source of
	// truth and the counter can be rebuilt from it.
	_, err = r.db.Exec(ctx, `UPDATE rules SET stars = stars + 1 WHERE id = $1`, star.RuleID)
	if err != nil {
		return classifyError("create star", err)
	}
	return nil
}

func (r *Repository) DeleteStar(ctx context.Context, ruleID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM stars WHERE rule_id = $1 AND user_id = $2`, ruleID, userID)
	if err != nil {
		return classifyError("delete star", err)
	}
	if tag.RowsAffected() == 0 {
		return ruleregistry.ErrNotStarred
	}

	_, err = r.db.Exec(ctx, `UPDATE rules SET stars = GREATEST(stars - 1, 0) WHERE id = $1`, ruleID)
	if err != nil {
		return classifyError("delete star", err)
	}
	return nil
}

func (r *Repository) DeleteStarsByRule(ctx context.Context, ruleID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM stars WHERE rule_id = $1`, ruleID)
	if err != nil {
		return classifyError("delete stars", err)
	}
	return nil
}

// Counter operations

func (r *Repository) IncrementDownloads(ctx context.Context, ruleID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE rules SET downloads = downloads + 1 WHERE id = $1`, ruleID)
	if err != nil {
		return classifyError("increment downloads", err)
	}
	if tag.RowsAffected() == 0 {
		return ruleregistry.ErrRuleNotFound
	}
	return nil
}
