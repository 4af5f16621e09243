package domain

import "time"

// Project is a startup project owned by a user. Updates bump Version and
// append a snapshot row to the version log; deletion is soft.
type Project struct {
	ID           string
	OwnerID      string
	Name         string
	Description  string
	Industry     string
	Stage        string
	PitchSummary string
	Version      int
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProjectVersion is an append-only snapshot of a project at a given version.
type ProjectVersion struct {
	ID           string
	ProjectID    string
	Version      int
	Name         string
	Description  string
	Industry     string
	Stage        string
	PitchSummary string
	CreatedAt    time.Time
}

// Snapshot captures the current project fields as a version record.
func (p Project) Snapshot() ProjectVersion {
	return ProjectVersion{
		ProjectID:    p.ID,
		Version:      p.Version,
		Name:         p.Name,
		Description:  p.Description,
		Industry:     p.Industry,
		Stage:        p.Stage,
		PitchSummary: p.PitchSummary,
	}
}
