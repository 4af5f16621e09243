package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

// ProjectService handles project CRUD and the append-only version log.
// Every update bumps the version counter and snapshots the resulting state.
type ProjectService struct {
	projects port.ProjectRepository
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewProjectService constructs a ProjectService instance.
func NewProjectService(projects port.ProjectRepository, events port.EventPublisher, log *zap.Logger) *ProjectService {
	return &ProjectService{
		projects: projects,
		events:   events,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *ProjectService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ProjectInput carries the mutable project fields.
type ProjectInput struct {
	Name         string
	Description  string
	Industry     string
	Stage        string
	PitchSummary string
}

// getOwned loads a project and enforces ownership.
func (s *ProjectService) getOwned(ctx context.Context, ownerID, projectID string) (*domain.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("lookup project: %w", err)
	}
	if project.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return project, nil
}

// Create adds a new project at version 1 and records the initial snapshot.
func (s *ProjectService) Create(ctx context.Context, ownerID string, input ProjectInput) (*domain.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrProjectNameRequired
	}

	now := s.now()
	project := domain.Project{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Name:         name,
		Description:  strings.TrimSpace(input.Description),
		Industry:     strings.TrimSpace(input.Industry),
		Stage:        strings.TrimSpace(input.Stage),
		PitchSummary: strings.TrimSpace(input.PitchSummary),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.recordVersion(ctx, project)
	return &project, nil
}

// Get returns a project owned by the caller.
func (s *ProjectService) Get(ctx context.Context, ownerID, projectID string) (*domain.Project, error) {
	return s.getOwned(ctx, ownerID, projectID)
}

// List returns the caller's projects, most recently updated first.
func (s *ProjectService) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	projects, err := s.projects.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Update applies the input, bumps the version, and appends a snapshot.
func (s *ProjectService) Update(ctx context.Context, ownerID, projectID string, input ProjectInput) (*domain.Project, error) {
	project, err := s.getOwned(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrProjectNameRequired
	}

	project.Name = name
	project.Description = strings.TrimSpace(input.Description)
	project.Industry = strings.TrimSpace(input.Industry)
	project.Stage = strings.TrimSpace(input.Stage)
	project.PitchSummary = strings.TrimSpace(input.PitchSummary)
	project.Version++
	project.UpdatedAt = s.now()

	if err := s.projects.Update(ctx, *project); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("update project: %w", err)
	}

	s.recordVersion(ctx, *project)
	return project, nil
}

// Delete soft-deletes a project. The version log is retained.
func (s *ProjectService) Delete(ctx context.Context, ownerID, projectID string) error {
	if _, err := s.getOwned(ctx, ownerID, projectID); err != nil {
		return err
	}

	if err := s.projects.SoftDelete(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// ListVersions returns the project's version log, newest first.
func (s *ProjectService) ListVersions(ctx context.Context, ownerID, projectID string) ([]domain.ProjectVersion, error) {
	if _, err := s.getOwned(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	versions, err := s.projects.ListVersions(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project versions: %w", err)
	}
	return versions, nil
}

// recordVersion appends the snapshot and publishes the version event. Both
// are best-effort; the primary mutation has already succeeded.
func (s *ProjectService) recordVersion(ctx context.Context, project domain.Project) {
	version := project.Snapshot()
	version.ID = uuid.NewString()
	version.CreatedAt = s.now()

	if err := s.projects.AddVersion(ctx, version); err != nil {
		s.logger.Warn("record project version failed",
			zap.String("project_id", project.ID),
			zap.Int("version", project.Version),
			zap.Error(err),
		)
		return
	}

	if err := s.events.PublishProjectVersionCreated(ctx, domain.ProjectVersionCreatedEvent{
		ProjectID: project.ID,
		OwnerID:   project.OwnerID,
		Version:   project.Version,
		CreatedAt: version.CreatedAt,
	}); err != nil {
		s.logger.Warn("publish project version event failed", zap.Error(err))
	}
}
