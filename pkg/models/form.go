package models

import "strings"

// PlanType selects the product family a quote is computed for
type PlanType string

const (
	PlanMedical PlanType = "medical"
	PlanHibah   PlanType = "hibah"
)

// Gender values as submitted by the quotation form
type Gender string

const (
	GenderMale   Gender = "lelaki"
	GenderFemale Gender = "perempuan"
)

// Smoker values as submitted by the quotation form
type Smoker string

const (
	SmokerYes Smoker = "ya"
	SmokerNo  Smoker = "tidak"
)

// ParseGender accepts the form values and their English equivalents
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lelaki", "male", "m", "l":
		return GenderMale
	case "perempuan", "female", "f", "p":
		return GenderFemale
	}
	return ""
}

// ParseSmoker accepts the form values and their English equivalents
func ParseSmoker(s string) Smoker {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ya", "yes", "y", "true":
		return SmokerYes
	case "tidak", "no", "n", "false":
		return SmokerNo
	}
	return ""
}

// Represents the data structure coming from the quotation form
type CustomerInputs struct {
	PlanType   PlanType `json:"planType" validate:"required,oneof=medical hibah"`
	Name       string   `json:"name" validate:"required"`
	DOB        string   `json:"dob" validate:"required"`
	Phone      string   `json:"phone" validate:"required"`
	Occupation string   `json:"occupation" validate:"required"`
	Gender     Gender   `json:"gender" validate:"required,oneof=lelaki perempuan"`
	Smoker     Smoker   `json:"smoker" validate:"required,oneof=ya tidak"`
}

// Lead is what gets posted to the agent's lead store after a quote
type Lead struct {
	CustomerInputs
	AgentID string `json:"agentId"`
}
