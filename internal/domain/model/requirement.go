// Package model contains the read-only domain records the engine consumes.
// Requirements and consultants are owned by upstream collaborators; the
// engine never mutates them.
package model

import "time"

// Shift types a requirement may ask for.
const (
	ShiftDay   = "day"
	ShiftNight = "night"
	ShiftSwing = "swing"
	ShiftAny   = "any"
)

// Location is a postal location with optional coordinates.
type Location struct {
	City      string   `json:"city,omitempty" yaml:"city"`
	State     string   `json:"state,omitempty" yaml:"state"`
	Latitude  *float64 `json:"latitude,omitempty" yaml:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" yaml:"longitude" validate:"omitempty,longitude"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Requirement is a staffing need for one hospital unit, shift and EMR module
// over a time window. AssignedConsultantIDs lists consultants already placed
// on the same project.
type Requirement struct {
	ID                          string    `json:"id" yaml:"id" validate:"required"`
	ProjectID                   string    `json:"projectId" yaml:"projectId"`
	HospitalID                  string    `json:"hospitalId" yaml:"hospitalId"`
	HospitalName                string    `json:"hospitalName" yaml:"hospitalName"`
	HospitalLocation            Location  `json:"hospitalLocation" yaml:"hospitalLocation"`
	EMRSystem                   string    `json:"emrSystem" yaml:"emrSystem" validate:"required"`
	Module                      string    `json:"module" yaml:"module" validate:"required"`
	ShiftType                   string    `json:"shiftType" yaml:"shiftType"`
	UnitName                    string    `json:"unitName" yaml:"unitName"`
	ConsultantsNeeded           int       `json:"consultantsNeeded" yaml:"consultantsNeeded" validate:"gte=0"`
	StartDate                   time.Time `json:"startDate" yaml:"startDate" validate:"required"`
	EndDate                     time.Time `json:"endDate" yaml:"endDate" validate:"required,gtfield=StartDate"`
	RequiresModuleCertification bool      `json:"requiresModuleCertification" yaml:"requiresModuleCertification"`
	AssignedConsultantIDs       []string  `json:"assignedConsultantIds" yaml:"assignedConsultantIds"`
}

