package model

import "time"

// Proficiency levels, lowest first.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
	LevelExpert       = "expert"
)

// Consultant statuses that make a consultant placeable.
const (
	StatusActive    = "active"
	StatusAvailable = "available"
)

// Document statuses accepted as complete.
const (
	DocumentComplete = "complete"
	DocumentApproved = "approved"
)

// ShiftFlexible marks a consultant that works any shift.
const ShiftFlexible = "flexible"

// Consultant is a read-only snapshot of a consultant profile.
type Consultant struct {
	ID               string               `json:"id" yaml:"id" validate:"required"`
	Name             string               `json:"name" yaml:"name"`
	Status           string               `json:"status" yaml:"status"`
	Location         Location             `json:"location" yaml:"location"`
	EMRProficiencies []EMRProficiency     `json:"emrProficiencies" yaml:"emrProficiencies" validate:"dive"`
	ModuleExperience []ModuleExperience   `json:"moduleExperience" yaml:"moduleExperience" validate:"dive"`
	Certifications   []Certification      `json:"certifications" yaml:"certifications" validate:"dive"`
	Documents        []Document           `json:"documents" yaml:"documents" validate:"dive"`
	Availability     []AvailabilityWindow `json:"availability" yaml:"availability" validate:"dive"`
	Performance      Performance          `json:"performance" yaml:"performance"`
	ShiftPreference  string               `json:"shiftPreference" yaml:"shiftPreference"`
	Colleagues       []ColleagueHistory   `json:"colleagues" yaml:"colleagues" validate:"dive"`

	// DecodeErr is set by a source when the profile could not be decoded.
	// Only ID is meaningful then, and Validate reports the error.
	DecodeErr error `json:"-" yaml:"-" validate:"-"`
}

// EMRProficiency is a consultant's skill level on one EMR system.
type EMRProficiency struct {
	System   string `json:"system" yaml:"system" validate:"required"`
	Level    string `json:"level" yaml:"level"`
	Verified bool   `json:"verified" yaml:"verified"`
}

// ModuleExperience counts past engagements on a module of an EMR system.
type ModuleExperience struct {
	EMRSystem   string `json:"emrSystem" yaml:"emrSystem" validate:"required"`
	Module      string `json:"module" yaml:"module" validate:"required"`
	Engagements int    `json:"engagements" yaml:"engagements" validate:"gte=0"`
}

// Certification is a credential, optionally scoped to a module.
// A nil ExpiresAt never expires.
type Certification struct {
	Name      string     `json:"name" yaml:"name"`
	EMRSystem string     `json:"emrSystem" yaml:"emrSystem" validate:"required"`
	Module    string     `json:"module,omitempty" yaml:"module"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt"`
}

// Document is an onboarding/compliance document on file.
type Document struct {
	Type      string     `json:"type" yaml:"type" validate:"required"`
	Status    string     `json:"status" yaml:"status"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt"`
}

// AvailabilityWindow is a span of time the consultant can work. With RRule
// set, the span is the first occurrence of a recurring window.
type AvailabilityWindow struct {
	Start time.Time `json:"start" yaml:"start" validate:"required"`
	End   time.Time `json:"end" yaml:"end" validate:"required,gtfield=Start"`
	RRule string    `json:"rrule,omitempty" yaml:"rrule"`
}

// Performance holds historical ratings on a 1-5 scale.
type Performance struct {
	Ratings []float64 `json:"ratings" yaml:"ratings" validate:"dive,gte=1,lte=5"`
}

// ColleagueHistory records past successful engagements with another consultant.
type ColleagueHistory struct {
	ConsultantID          string `json:"consultantId" yaml:"consultantId" validate:"required"`
	SuccessfulEngagements int    `json:"successfulEngagements" yaml:"successfulEngagements" validate:"gte=0"`
}
