// Package model provides the data models shared by the advisor service and pipeline.
package model

import "github.com/kart-io/sentinel-advisor/pkg/utils/validator"

// Questionnaire is the investor risk questionnaire. Each field holds the
// 1-based index of the selected answer; Q3 allows multiple selections.
type Questionnaire struct {
	Q1       int   `json:"q1"`
	Q2       int   `json:"q2"`
	Q3       []int `json:"q3"`
	Q3Period int   `json:"q3_period"`
	Q4       int   `json:"q4"`
	Q5       int   `json:"q5"`
	Q6       int   `json:"q6"`
	// Q8 is accepted for compatibility with the frontend and not scored.
	Q8  *int `json:"q8,omitempty"`
	Q9  int  `json:"q9"`
	Q10 int  `json:"q10"`
	Q11 int  `json:"q11"`
}

// UserProfile is the risk profile derived from a Questionnaire.
type UserProfile struct {
	RiskLevel         string `json:"risk_level" validate:"required,trimmed"`
	InvestmentHorizon int    `json:"investment_horizon" validate:"required,min=1"`
}

// Valid reports whether the profile carries a risk level and a horizon.
func (p *UserProfile) Valid() bool {
	return p != nil && validator.Struct(p) == nil
}
