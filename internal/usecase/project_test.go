package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

// memProjectRepo is an in-memory port.ProjectRepository shared by the project
// and chat service tests.
type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*domain.Project
	versions map[string][]domain.ProjectVersion
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{
		projects: make(map[string]*domain.Project),
		versions: make(map[string][]domain.ProjectVersion),
	}
}

func (m *memProjectRepo) Create(_ context.Context, project domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := project
	m.projects[project.ID] = &copied
	return nil
}

func (m *memProjectRepo) GetByID(_ context.Context, id string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := m.projects[id]
	if !ok || project.IsDeleted {
		return nil, repository.ErrNotFound
	}
	copied := *project
	return &copied, nil
}

func (m *memProjectRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Project
	for _, project := range m.projects {
		if project.OwnerID == ownerID && !project.IsDeleted {
			out = append(out, *project)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memProjectRepo) Update(_ context.Context, project domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.projects[project.ID]
	if !ok || existing.IsDeleted {
		return repository.ErrNotFound
	}
	copied := project
	m.projects[project.ID] = &copied
	return nil
}

func (m *memProjectRepo) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := m.projects[id]
	if !ok || project.IsDeleted {
		return repository.ErrNotFound
	}
	project.IsDeleted = true
	return nil
}

func (m *memProjectRepo) AddVersion(_ context.Context, version domain.ProjectVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[version.ProjectID] = append(m.versions[version.ProjectID], version)
	return nil
}

func (m *memProjectRepo) ListVersions(_ context.Context, projectID string) ([]domain.ProjectVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.ProjectVersion{}, m.versions[projectID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

var _ port.ProjectRepository = (*memProjectRepo)(nil)

type projectFixture struct {
	service  *ProjectService
	projects *memProjectRepo
	events   *stubEvents
}

func newProjectFixture(t *testing.T) *projectFixture {
	t.Helper()

	projects := newMemProjectRepo()
	events := newStubEvents()
	return &projectFixture{
		service:  NewProjectService(projects, events, zap.NewNop()),
		projects: projects,
		events:   events,
	}
}

const testOwnerID = "owner-1"

func TestCreateProjectStartsAtVersionOne(t *testing.T) {
	f := newProjectFixture(t)

	project, err := f.service.Create(context.Background(), testOwnerID, ProjectInput{
		Name:         "  Fintech Pivot  ",
		Description:  "B2B payments",
		Industry:     "fintech",
		Stage:        "seed",
		PitchSummary: "We move money faster.",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	if project.Name != "Fintech Pivot" {
		t.Errorf("name = %q, want trimmed %q", project.Name, "Fintech Pivot")
	}
	if project.Version != 1 {
		t.Errorf("version = %d, want 1", project.Version)
	}

	versions, err := f.service.ListVersions(context.Background(), testOwnerID, project.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 1 || versions[0].Version != 1 {
		t.Fatalf("version log = %+v, want one entry at version 1", versions)
	}
	if versions[0].PitchSummary != "We move money faster." {
		t.Errorf("snapshot pitch = %q", versions[0].PitchSummary)
	}
	if got := f.events.count("project_version_created"); got != 1 {
		t.Errorf("version events = %d, want 1", got)
	}
}

func TestCreateProjectRequiresName(t *testing.T) {
	f := newProjectFixture(t)

	if _, err := f.service.Create(context.Background(), testOwnerID, ProjectInput{Name: "   "}); !errors.Is(err, ErrProjectNameRequired) {
		t.Fatalf("create error = %v, want %v", err, ErrProjectNameRequired)
	}

	project, err := f.service.Create(context.Background(), testOwnerID, ProjectInput{Name: "Named"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := f.service.Update(context.Background(), testOwnerID, project.ID, ProjectInput{Name: ""}); !errors.Is(err, ErrProjectNameRequired) {
		t.Fatalf("update error = %v, want %v", err, ErrProjectNameRequired)
	}
}

func TestUpdateProjectBumpsVersionAndSnapshots(t *testing.T) {
	f := newProjectFixture(t)

	project, err := f.service.Create(context.Background(), testOwnerID, ProjectInput{Name: "Draft"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	updated, err := f.service.Update(context.Background(), testOwnerID, project.ID, ProjectInput{
		Name:  "Renamed",
		Stage: "series-a",
	})
	if err != nil {
		t.Fatalf("update project: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("version = %d, want 2", updated.Version)
	}
	if updated.Name != "Renamed" || updated.Stage != "series-a" {
		t.Errorf("updated project = %+v", updated)
	}

	versions, _ := f.service.ListVersions(context.Background(), testOwnerID, project.ID)
	if len(versions) != 2 {
		t.Fatalf("version log entries = %d, want 2", len(versions))
	}
	// Newest first.
	if versions[0].Version != 2 || versions[0].Name != "Renamed" {
		t.Errorf("latest snapshot = %+v", versions[0])
	}
	if versions[1].Version != 1 || versions[1].Name != "Draft" {
		t.Errorf("initial snapshot = %+v", versions[1])
	}
}

func TestProjectOwnershipEnforced(t *testing.T) {
	f := newProjectFixture(t)

	project, err := f.service.Create(context.Background(), testOwnerID, ProjectInput{Name: "Mine"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	if _, err := f.service.Get(context.Background(), "intruder", project.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("get as other owner error = %v, want %v", err, ErrForbidden)
	}
	if _, err := f.service.Update(context.Background(), "intruder", project.ID, ProjectInput{Name: "Stolen"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("update as other owner error = %v, want %v", err, ErrForbidden)
	}
	if err := f.service.Delete(context.Background(), "intruder", project.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete as other owner error = %v, want %v", err, ErrForbidden)
	}
}

func TestProjectNotFound(t *testing.T) {
	f := newProjectFixture(t)

	if _, err := f.service.Get(context.Background(), testOwnerID, "missing"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("get missing project error = %v, want %v", err, ErrProjectNotFound)
	}
}

func TestDeleteProjectIsSoft(t *testing.T) {
	f := newProjectFixture(t)

	project, err := f.service.Create(context.Background(), testOwnerID, ProjectInput{Name: "Ephemeral"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	if err := f.service.Delete(context.Background(), testOwnerID, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	if _, err := f.service.Get(context.Background(), testOwnerID, project.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("get deleted project error = %v, want %v", err, ErrProjectNotFound)
	}

	list, err := f.service.List(context.Background(), testOwnerID)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("listed projects after delete = %d, want 0", len(list))
	}

	// The row itself survives the soft delete.
	f.projects.mu.Lock()
	stored, ok := f.projects.projects[project.ID]
	f.projects.mu.Unlock()
	if !ok || !stored.IsDeleted {
		t.Error("soft delete removed the underlying row")
	}
}

func TestListProjectsScopedToOwner(t *testing.T) {
	f := newProjectFixture(t)

	if _, err := f.service.Create(context.Background(), testOwnerID, ProjectInput{Name: "Alpha"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.service.Create(context.Background(), "someone-else", ProjectInput{Name: "Beta"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := f.service.List(context.Background(), testOwnerID)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Alpha" {
		t.Fatalf("list = %+v, want only Alpha", list)
	}
}
