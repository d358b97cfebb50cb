// Package probe verifies a running staffmatch server from the outside: it
// fetches rankings for a set of requirements and checks every envelope
// against the ranking invariants.
package probe

import "time"

// Config holds configuration for a probe run.
type Config struct {
	BaseURL        string        // staffmatch server
	SchedulingURL  string        // scheduling service, used to enumerate a project's requirements
	ProjectID      string        // project whose requirements are probed
	RequirementIDs []string      // explicit requirement ids
	Workers        int           // concurrent requirements in flight
	Timeout        time.Duration // per HTTP request
	Recalculate    bool          // also exercise the recalculate endpoint
	OutputFile     string        // optional JSON report
	Verbose        bool
}

// Violation is one broken invariant on one requirement.
type Violation struct {
	RequirementID string `json:"requirementId"`
	Check         string `json:"check"`
	Detail        string `json:"detail"`
}

// Report summarizes a probe run.
type Report struct {
	Requirements int           `json:"requirements"`
	Failed       int           `json:"failed"`
	Candidates   int           `json:"candidates"`
	Eligible     int           `json:"eligible"`
	Violations   []Violation   `json:"violations"`
	StartTime    time.Time     `json:"startTime"`
	Duration     time.Duration `json:"duration"`
}
