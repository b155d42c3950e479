package models

import "github.com/shopspring/decimal"

// MedicalQuote holds monthly contributions for the basic and full riders on both limit tiers
type MedicalQuote struct {
	Basic150 Premium `json:"basic150"`
	Full150  Premium `json:"full150"`
	Basic200 Premium `json:"basic200"`
	Full200  Premium `json:"full200"`
}

// HibahQuote holds one premium per hibah variant. Evo50 is a coverage
// amount; its premium is fixed at Evo50Premium.
type HibahQuote struct {
	Nova         Premium         `json:"nova"`
	NovaWaiver   Premium         `json:"novaWaiver"`
	NovaCI       Premium         `json:"novaCI"`
	Chinta       Premium         `json:"chinta"`
	ChintaWaiver Premium         `json:"chintaWaiver"`
	ChintaCI     Premium         `json:"chintaCI"`
	Inspirasi    Premium         `json:"inspirasi"`
	Evo50        decimal.Decimal `json:"evo50"`
}

// Evo50Premium is the fixed monthly contribution of the Evo 50 plan
var Evo50Premium = decimal.NewFromInt(50)

// Quote is derived per form submission and never persisted
type Quote struct {
	NextBirthdayAge int           `json:"nextBirthdayAge"`
	Medical         *MedicalQuote `json:"medical,omitempty"`
	Hibah           *HibahQuote   `json:"hibah,omitempty"`
}
