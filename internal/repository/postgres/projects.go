package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

var projectColumns = []string{
	"id",
	"owner_id",
	"name",
	"description",
	"industry",
	"stage",
	"pitch_summary",
	"version",
	"is_deleted",
	"created_at",
	"updated_at",
}

// ProjectRepository implements port.ProjectRepository using PostgreSQL.
type ProjectRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewProjectRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewProjectRepository(exec pgExecutor) *ProjectRepository {
	return &ProjectRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var project domain.Project
	if err := row.Scan(
		&project.ID,
		&project.OwnerID,
		&project.Name,
		&project.Description,
		&project.Industry,
		&project.Stage,
		&project.PitchSummary,
		&project.Version,
		&project.IsDeleted,
		&project.CreatedAt,
		&project.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &project, nil
}

// Create inserts a new project row.
func (r *ProjectRepository) Create(ctx context.Context, project domain.Project) error {
	stmt, args, err := r.builder.Insert("projects").
		Columns(
			"id",
			"owner_id",
			"name",
			"description",
			"industry",
			"stage",
			"pitch_summary",
			"version",
			"created_at",
			"updated_at",
		).
		Values(
			project.ID,
			project.OwnerID,
			project.Name,
			project.Description,
			project.Industry,
			project.Stage,
			project.PitchSummary,
			project.Version,
			project.CreatedAt,
			project.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert project sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetByID retrieves a project by identifier. Soft-deleted projects are not
// returned.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	stmt, args, err := r.builder.
		Select(projectColumns...).
		From("projects").
		Where(squirrel.Eq{"id": id, "is_deleted": false}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select project sql: %w", err)
	}

	return scanProject(r.exec.QueryRow(ctx, stmt, args...))
}

// ListByOwner returns the owner's live projects, most recently updated first.
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Project, error) {
	stmt, args, err := r.builder.
		Select(projectColumns...).
		From("projects").
		Where(squirrel.Eq{"owner_id": ownerID, "is_deleted": false}).
		OrderBy("updated_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select projects sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// Update persists mutable project fields and the bumped version.
func (r *ProjectRepository) Update(ctx context.Context, project domain.Project) error {
	stmt, args, err := r.builder.Update("projects").
		Set("name", project.Name).
		Set("description", project.Description).
		Set("industry", project.Industry).
		Set("stage", project.Stage).
		Set("pitch_summary", project.PitchSummary).
		Set("version", project.Version).
		Set("updated_at", project.UpdatedAt).
		Where(squirrel.Eq{"id": project.ID, "is_deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update project sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SoftDelete marks a project deleted without removing its rows.
func (r *ProjectRepository) SoftDelete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("projects").
		Set("is_deleted", true).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "is_deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete project sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("soft delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AddVersion appends a snapshot to the version log.
func (r *ProjectRepository) AddVersion(ctx context.Context, version domain.ProjectVersion) error {
	stmt, args, err := r.builder.Insert("project_versions").
		Columns(
			"id",
			"project_id",
			"version",
			"name",
			"description",
			"industry",
			"stage",
			"pitch_summary",
			"created_at",
		).
		Values(
			version.ID,
			version.ProjectID,
			version.Version,
			version.Name,
			version.Description,
			version.Industry,
			version.Stage,
			version.PitchSummary,
			version.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert project version sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert project version: %w", err)
	}
	return nil
}

// ListVersions returns the version log in descending version order.
func (r *ProjectRepository) ListVersions(ctx context.Context, projectID string) ([]domain.ProjectVersion, error) {
	stmt, args, err := r.builder.
		Select("id", "project_id", "version", "name", "description", "industry", "stage", "pitch_summary", "created_at").
		From("project_versions").
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("version DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select project versions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select project versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.ProjectVersion
	for rows.Next() {
		var version domain.ProjectVersion
		if err := rows.Scan(
			&version.ID,
			&version.ProjectID,
			&version.Version,
			&version.Name,
			&version.Description,
			&version.Industry,
			&version.Stage,
			&version.PitchSummary,
			&version.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan project version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project versions: %w", err)
	}
	return versions, nil
}

var _ port.ProjectRepository = (*ProjectRepository)(nil)
