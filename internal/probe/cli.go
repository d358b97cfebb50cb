package probe

import (
	"context"
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/staffmatch/pkg/logger"
)

// Default flag values.
const (
	defaultBaseURL       = "http://localhost:9080"
	defaultSchedulingURL = "http://localhost:8081"
	defaultTimeout       = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
)

// NewCommand builds the probe command line.
func NewCommand() *cobra.Command {
	cfg := &Config{}
	var (
		logFormat  string
		runTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe [requirement-id...]",
		Short: "Verify staffmatch rankings against their invariants",
		Long: `probe fetches the ranking of each requirement from a running staffmatch
server, reads it a second time to confirm it is served from cache, and checks
every envelope: summary counts, eligibility flags, ordering, score bounds and
the weighted total. Requirements are given as arguments, enumerated from a
project on the scheduling service, or both.`,
		Example: `  probe req-1 req-2
  probe --project proj-42 --scheduling-url http://scheduling:8081 --recalculate
  probe --url http://localhost:9080 --output report.json req-1`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.InitWith(os.Stdout, logFormat); err != nil {
				return err
			}
			if cfg.Verbose {
				_ = logger.SetLevelString("debug")
			}
			cfg.RequirementIDs = args
			if len(args) == 0 && cfg.ProjectID == "" {
				return errors.New("give requirement ids or --project")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
			defer cancel()

			_, err := Run(ctx, cfg)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", defaultBaseURL, "base URL of the staffmatch server")
	f.StringVar(&cfg.SchedulingURL, "scheduling-url", defaultSchedulingURL, "base URL of the scheduling service")
	f.StringVar(&cfg.ProjectID, "project", "", "probe every requirement of this project")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "requirements probed concurrently")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "overall deadline")
	f.BoolVar(&cfg.Recalculate, "recalculate", false, "also force a recalculation per requirement")
	f.StringVar(&cfg.OutputFile, "output", "", "write a JSON report to this file")
	f.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every requirement")
	return cmd
}
