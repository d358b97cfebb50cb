package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural constraints of a requirement.
func (r Requirement) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("requirement %q: %w", r.ID, err)
	}
	return nil
}

// Validate checks the structural constraints of a consultant snapshot.
func (c Consultant) Validate() error {
	if c.DecodeErr != nil {
		return fmt.Errorf("consultant %q: decode: %w", c.ID, c.DecodeErr)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("consultant %q: %w", c.ID, err)
	}
	return nil
}
