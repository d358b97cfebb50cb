// Package eligibility evaluates the hard constraints that decide whether a
// consultant may be placed on a requirement at all.
package eligibility

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/staffmatch/internal/domain/availability"
	"github.com/okian/staffmatch/internal/domain/model"
)

// Constraint identifiers, reported in this order.
const (
	InactiveStatus             = "inactive_status"
	DocumentsIncomplete        = "documents_incomplete"
	DocumentsExpired           = "documents_expired"
	NoAvailabilityOverlap      = "no_availability_overlap"
	MissingEMRCertification    = "missing_emr_certification"
	MissingModuleCertification = "missing_module_certification"
)

// Result is the outcome of a constraint evaluation.
type Result struct {
	Eligible          bool
	FailedConstraints []string
}

type check struct {
	id string
	// failed reports whether the consultant violates the constraint.
	failed func(c model.Consultant, r model.Requirement) (bool, error)
}

// Evaluator checks every hard constraint. It holds no state and is safe for
// concurrent use.
type Evaluator struct {
	checks []check
}

// New returns an Evaluator with the standard constraint set.
func New() *Evaluator {
	return &Evaluator{checks: []check{
		{InactiveStatus, inactiveStatus},
		{DocumentsIncomplete, documentsIncomplete},
		{DocumentsExpired, documentsExpired},
		{NoAvailabilityOverlap, noAvailabilityOverlap},
		{MissingEMRCertification, missingEMRCertification},
		{MissingModuleCertification, missingModuleCertification},
	}}
}

// Evaluate runs all constraints without short-circuiting, so the result lists
// every violation. An error means the consultant data is malformed.
func (e *Evaluator) Evaluate(c model.Consultant, r model.Requirement) (Result, error) {
	failed := make([]string, 0, len(e.checks))
	for _, ch := range e.checks {
		bad, err := ch.failed(c, r)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", ch.id, err)
		}
		if bad {
			failed = append(failed, ch.id)
		}
	}
	return Result{Eligible: len(failed) == 0, FailedConstraints: failed}, nil
}

func inactiveStatus(c model.Consultant, _ model.Requirement) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(c.Status)) {
	case model.StatusActive, model.StatusAvailable:
		return false, nil
	}
	return true, nil
}

func documentsIncomplete(c model.Consultant, _ model.Requirement) (bool, error) {
	if len(c.Documents) == 0 {
		return true, nil
	}
	for _, d := range c.Documents {
		switch strings.ToLower(strings.TrimSpace(d.Status)) {
		case model.DocumentComplete, model.DocumentApproved:
		default:
			return true, nil
		}
	}
	return false, nil
}

func documentsExpired(c model.Consultant, r model.Requirement) (bool, error) {
	for _, d := range c.Documents {
		if expiresBefore(d.ExpiresAt, r.EndDate) {
			return true, nil
		}
	}
	return false, nil
}

func noAvailabilityOverlap(c model.Consultant, r model.Requirement) (bool, error) {
	ok, err := availability.Overlaps(c.Availability, r.StartDate, r.EndDate)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func missingEMRCertification(c model.Consultant, r model.Requirement) (bool, error) {
	for _, cert := range c.Certifications {
		if strings.EqualFold(cert.EMRSystem, r.EMRSystem) && !expiresBefore(cert.ExpiresAt, r.EndDate) {
			return false, nil
		}
	}
	return true, nil
}

func missingModuleCertification(c model.Consultant, r model.Requirement) (bool, error) {
	if !r.RequiresModuleCertification {
		return false, nil
	}
	for _, cert := range c.Certifications {
		if strings.EqualFold(cert.EMRSystem, r.EMRSystem) &&
			strings.EqualFold(cert.Module, r.Module) &&
			!expiresBefore(cert.ExpiresAt, r.EndDate) {
			return false, nil
		}
	}
	return true, nil
}

// expiresBefore treats a nil expiry as never expiring.
func expiresBefore(exp *time.Time, t time.Time) bool {
	return exp != nil && exp.Before(t)
}
