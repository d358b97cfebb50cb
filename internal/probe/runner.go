package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/staffmatch/internal/adapters/source"
	"github.com/okian/staffmatch/pkg/logger"
)

const (
	directoryPermission = 0o750
	reportPermission    = 0o600
)

// Errors returned by Run.
var (
	ErrNoRequirements = errors.New("no requirements to probe")
	ErrViolations     = errors.New("invariant violations found")
)

// Run probes every configured requirement and returns ErrViolations when any
// envelope breaks an invariant.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	log := logger.Get().Named("probe")
	report := &Report{StartTime: time.Now(), Violations: []Violation{}}

	ids, err := requirementIDs(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoRequirements
	}
	report.Requirements = len(ids)

	log.Info(ctx, "starting probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requirements", len(ids)),
		logger.Int("workers", cfg.Workers),
		logger.Bool("recalculate", cfg.Recalculate),
	)

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, id := range ids {
		g.Go(func() error {
			res := probeOne(gctx, c, id, cfg.Recalculate)
			if cfg.Verbose || res.err != nil || len(res.violations) > 0 {
				logResult(gctx, log, id, res)
			}
			mu.Lock()
			defer mu.Unlock()
			if res.err != nil {
				report.Failed++
			}
			report.Candidates += res.candidates
			report.Eligible += res.eligible
			report.Violations = append(report.Violations, res.violations...)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(report.Violations, func(i, j int) bool {
		return report.Violations[i].RequirementID < report.Violations[j].RequirementID
	})
	report.Duration = time.Since(report.StartTime)

	if cfg.OutputFile != "" {
		if err := writeReport(cfg.OutputFile, report); err != nil {
			log.Warn(ctx, "failed to write report", logger.Error(err))
		}
	}

	log.Info(ctx, "probe finished",
		logger.Int("requirements", report.Requirements),
		logger.Int("failed", report.Failed),
		logger.Int("candidates", report.Candidates),
		logger.Int("eligible", report.Eligible),
		logger.Int("violations", len(report.Violations)),
		logger.Duration("duration", report.Duration),
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if len(report.Violations) > 0 {
		return report, fmt.Errorf("%w: %d", ErrViolations, len(report.Violations))
	}
	return report, nil
}

type result struct {
	candidates int
	eligible   int
	violations []Violation
	err        error
	reordered  bool
}

func probeOne(ctx context.Context, c *client, id string, recalc bool) result {
	var res result

	first, err := c.recommendations(ctx, id)
	if err != nil {
		res.err = err
		return res
	}
	res.candidates = first.TotalEvaluated
	res.eligible = first.TotalEligible
	res.violations = append(res.violations, Verify(id, first)...)

	second, err := c.recommendations(ctx, id)
	if err != nil {
		res.err = err
		return res
	}
	res.violations = append(res.violations, VerifyCachedRead(id, first, second)...)

	if !recalc {
		return res
	}
	fresh, err := c.recalculate(ctx, id)
	if err != nil {
		res.err = err
		return res
	}
	res.violations = append(res.violations, Verify(id, fresh)...)
	res.violations = append(res.violations, VerifyRecalculate(id, second, fresh)...)
	res.reordered = !sameOrder(second.Recommendations, fresh.Recommendations)
	return res
}

func logResult(ctx context.Context, log logger.Logger, id string, res result) {
	fields := []logger.Field{
		logger.String("requirement_id", id),
		logger.Int("candidates", res.candidates),
		logger.Int("eligible", res.eligible),
		logger.Int("violations", len(res.violations)),
		logger.Bool("reordered", res.reordered),
	}
	switch {
	case res.err != nil:
		log.Error(ctx, "requirement probe failed", append(fields, logger.Error(res.err))...)
	case len(res.violations) > 0:
		for _, v := range res.violations {
			log.Warn(ctx, "invariant violated",
				logger.String("requirement_id", v.RequirementID),
				logger.String("check", v.Check),
				logger.String("detail", v.Detail))
		}
	default:
		log.Info(ctx, "requirement ok", fields...)
	}
}

// requirementIDs merges explicit ids with the requirements of cfg.ProjectID.
func requirementIDs(ctx context.Context, cfg *Config) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range cfg.RequirementIDs {
		add(id)
	}

	if cfg.ProjectID == "" {
		return ids, nil
	}
	lister, err := source.NewHTTPSource(cfg.SchedulingURL, source.WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("scheduling client: %w", err)
	}
	reqs, err := lister.ProjectRequirements(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list requirements of project %s: %w", cfg.ProjectID, err)
	}
	for _, r := range reqs {
		add(r.ID)
	}
	return ids, nil
}

func writeReport(path string, report *Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, reportPermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
