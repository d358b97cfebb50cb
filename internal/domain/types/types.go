// Package types contains the result types shared by the engine, the cache and
// the HTTP layer.
package types

import (
	"encoding/json"
	"time"
)

// ScoreBreakdown holds the per-factor sub-scores, each in [0,100].
type ScoreBreakdown struct {
	EMR          float64 `json:"emr"`
	Module       float64 `json:"module"`
	Proficiency  float64 `json:"proficiency"`
	Availability float64 `json:"availability"`
	Performance  float64 `json:"performance"`
	Shift        float64 `json:"shift"`
	Colleague    float64 `json:"colleague"`
	Location     float64 `json:"location"`
}

// ConsultantScoreResult is one ranked candidate.
type ConsultantScoreResult struct {
	ConsultantID          string         `json:"consultantId"`
	TotalScore            float64        `json:"totalScore"`
	IsEligible            bool           `json:"isEligible"`
	HardConstraintsFailed []string       `json:"hardConstraintsFailed"`
	Scores                ScoreBreakdown `json:"scores"`
}

// MarshalJSON encodes a nil HardConstraintsFailed as [].
func (r ConsultantScoreResult) MarshalJSON() ([]byte, error) {
	type plain ConsultantScoreResult
	if r.HardConstraintsFailed == nil {
		r.HardConstraintsFailed = []string{}
	}
	return json.Marshal(plain(r))
}

// RecommendationEnvelope is the ranked answer for one requirement.
type RecommendationEnvelope struct {
	RequirementID   string                  `json:"requirementId"`
	TotalEvaluated  int                     `json:"totalEvaluated"`
	TotalEligible   int                     `json:"totalEligible"`
	Recommendations []ConsultantScoreResult `json:"recommendations"`
	CalculatedAt    time.Time               `json:"calculatedAt"`
	Cached          bool                    `json:"cached"`
}

// MarshalJSON encodes a nil Recommendations as [].
func (e RecommendationEnvelope) MarshalJSON() ([]byte, error) {
	type plain RecommendationEnvelope
	if e.Recommendations == nil {
		e.Recommendations = []ConsultantScoreResult{}
	}
	return json.Marshal(plain(e))
}

// CacheEntry is the stored form of an envelope.
type CacheEntry struct {
	RequirementID string                 `json:"requirementId"`
	Envelope      RecommendationEnvelope `json:"envelope"`
	ComputedAt    time.Time              `json:"computedAt"`
}
