package source

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/okian/staffmatch/internal/domain/model"
	"github.com/okian/staffmatch/internal/domain/types"
	"github.com/okian/staffmatch/pkg/logger"
)

// Fixtures is the on-disk layout of a FileSource. Consultants are kept as
// nodes so that each profile is decoded on its own.
type Fixtures struct {
	Requirements []model.Requirement `yaml:"requirements"`
	Consultants  []yaml.Node         `yaml:"consultants"`
}

// FileSource serves requirements and consultants from a YAML fixture file.
// It is meant for demos and local development.
type FileSource struct {
	path string

	mu           sync.RWMutex
	requirements map[string]model.Requirement
	order        []string
	consultants  []model.Consultant
}

// NewFileSource loads the fixture file at path.
func NewFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the fixture file. On error the previous data is kept.
func (s *FileSource) Reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read fixtures %s: %w", s.path, err)
	}
	var fx Fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("failed to parse fixtures %s: %w", s.path, err)
	}

	reqs := make(map[string]model.Requirement, len(fx.Requirements))
	order := make([]string, 0, len(fx.Requirements))
	for _, r := range fx.Requirements {
		if _, dup := reqs[r.ID]; dup {
			return fmt.Errorf("fixtures %s: duplicate requirement %q", s.path, r.ID)
		}
		reqs[r.ID] = r
		order = append(order, r.ID)
	}

	consultants := make([]model.Consultant, 0, len(fx.Consultants))
	for i := range fx.Consultants {
		var c model.Consultant
		if err := fx.Consultants[i].Decode(&c); err != nil {
			var head struct {
				ID string `yaml:"id"`
			}
			_ = fx.Consultants[i].Decode(&head)
			consultants = append(consultants, undecodable(context.Background(), logger.Get().Named("source"), i, head.ID, err))
			continue
		}
		consultants = append(consultants, c)
	}

	s.mu.Lock()
	s.requirements, s.order, s.consultants = reqs, order, consultants
	s.mu.Unlock()
	return nil
}

// Requirement implements DataSource.
func (s *FileSource) Requirement(_ context.Context, id string) (model.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requirements[id]
	if !ok {
		return model.Requirement{}, fmt.Errorf("requirement %s: %w", id, types.ErrNotFound)
	}
	return r, nil
}

// Consultants implements DataSource.
func (s *FileSource) Consultants(_ context.Context) ([]model.Consultant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Consultant, len(s.consultants))
	copy(out, s.consultants)
	return out, nil
}

// ProjectRequirements implements ProjectLister in file order.
func (s *FileSource) ProjectRequirements(_ context.Context, projectID string) ([]model.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Requirement
	for _, id := range s.order {
		if r := s.requirements[id]; r.ProjectID == projectID {
			out = append(out, r)
		}
	}
	return out, nil
}
