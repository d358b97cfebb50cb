// Package source reads requirements and consultant profiles from the
// collaborators that own them. The engine only ever reads.
package source

import (
	"context"

	"github.com/okian/staffmatch/internal/domain/model"
)

// Source kinds.
const (
	KindHTTP = "http"
	KindFile = "file"
)

// DataSource loads the inputs of one ranking computation.
type DataSource interface {
	// Requirement returns the requirement or an error wrapping
	// types.ErrNotFound or types.ErrUpstreamUnavailable.
	Requirement(ctx context.Context, id string) (model.Requirement, error)
	// Consultants returns the full candidate pool.
	Consultants(ctx context.Context) ([]model.Consultant, error)
}

// ProjectLister enumerates the requirements of a project.
type ProjectLister interface {
	ProjectRequirements(ctx context.Context, projectID string) ([]model.Requirement, error)
}
