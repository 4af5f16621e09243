package port

import (
	"context"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
)

// ProjectRepository exposes persistence behavior for projects and their
// append-only version log.
type ProjectRepository interface {
	Create(ctx context.Context, project domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Project, error)
	Update(ctx context.Context, project domain.Project) error
	SoftDelete(ctx context.Context, id string) error
	AddVersion(ctx context.Context, version domain.ProjectVersion) error
	ListVersions(ctx context.Context, projectID string) ([]domain.ProjectVersion, error)
}
