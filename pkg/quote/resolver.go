// Package quote maps a customer's age, gender and smoking status onto the
// agent's rate tables. Everything here is pure; no I/O.
package quote

import (
	"github.com/shopspring/decimal"

	"getquote/pkg/models"
)

// Minimum entry ages for the hibah families. Younger customers are quoted at the floor.
const (
	NovaFloorAge   = 25
	ChintaFloorAge = 20
)

// Resolve computes the quote for a plan. Unknown plan types yield a quote with only the age set.
func Resolve(plan models.PlanType, age int, gender models.Gender, smoker models.Smoker, tables *models.RateTable) models.Quote {
	q := models.Quote{NextBirthdayAge: age}
	if tables == nil {
		tables = &models.RateTable{}
	}

	switch plan {
	case models.PlanMedical:
		m := resolveMedical(age, gender, smoker, tables)
		q.Medical = &m
	case models.PlanHibah:
		h := resolveHibah(age, gender, smoker, tables)
		q.Hibah = &h
	}
	return q
}

// Both tiers must carry the age or the medical quote is empty.
// Only female non-smokers read the female columns; female smokers are priced
// off the male columns, which is how the rate sheet is laid out.
func resolveMedical(age int, gender models.Gender, smoker models.Smoker, tables *models.RateTable) models.MedicalQuote {
	r150, ok150 := tables.Medical150.Lookup(age)
	r200, ok200 := tables.Medical200.Lookup(age)
	if !ok150 || !ok200 {
		return models.MedicalQuote{}
	}

	basic, full := medicalColumns(gender, smoker)
	return models.MedicalQuote{
		Basic150: basic(r150),
		Full150:  full(r150),
		Basic200: basic(r200),
		Full200:  full(r200),
	}
}

type medicalColumn func(models.MedicalRow) models.Premium

func medicalColumns(gender models.Gender, smoker models.Smoker) (basic, full medicalColumn) {
	switch {
	case gender == models.GenderFemale && smoker == models.SmokerNo:
		return func(r models.MedicalRow) models.Premium { return r.FemaleBasic },
			func(r models.MedicalRow) models.Premium { return r.FemaleFull }
	case smoker == models.SmokerYes:
		return func(r models.MedicalRow) models.Premium { return r.MaleSmokerBasic },
			func(r models.MedicalRow) models.Premium { return r.MaleSmokerFull }
	default:
		return func(r models.MedicalRow) models.Premium { return r.MaleNonSmokerBasic },
			func(r models.MedicalRow) models.Premium { return r.MaleNonSmokerFull }
	}
}

func resolveHibah(age int, gender models.Gender, smoker models.Smoker, tables *models.RateTable) models.HibahQuote {
	novaAge := max(age, NovaFloorAge)
	chintaAge := max(age, ChintaFloorAge)

	return models.HibahQuote{
		Nova:         hibahPremium(tables.Nova, novaAge, gender, smoker),
		NovaWaiver:   hibahPremium(tables.NovaWaiver, novaAge, gender, smoker),
		NovaCI:       hibahPremium(tables.NovaCI, novaAge, gender, smoker),
		Chinta:       hibahPremium(tables.Chinta, chintaAge, gender, smoker),
		ChintaWaiver: hibahPremium(tables.ChintaWaiver, chintaAge, gender, smoker),
		ChintaCI:     hibahPremium(tables.ChintaCI, chintaAge, gender, smoker),
		Inspirasi:    inspirasiPremium(tables.Inspirasi, age, gender, smoker),
		Evo50:        evoCoverage(tables.Evo, age, gender, smoker),
	}
}

func hibahPremium(t models.Table[models.HibahRow], age int, gender models.Gender, smoker models.Smoker) models.Premium {
	r, ok := t.Lookup(age)
	if !ok {
		return models.NoPremium
	}
	switch {
	case gender == models.GenderFemale:
		return r.Female
	case smoker == models.SmokerYes:
		return r.MaleSmoker
	default:
		return r.MaleNonSmoker
	}
}

func inspirasiPremium(t models.Table[models.InspirasiRow], age int, gender models.Gender, smoker models.Smoker) models.Premium {
	r, ok := t.Lookup(age)
	if !ok {
		return models.NoPremium
	}
	if gender == models.GenderFemale {
		if smoker == models.SmokerYes {
			return r.FemaleSmoker
		}
		return r.FemaleNonSmoker
	}
	if smoker == models.SmokerYes {
		return r.MaleSmoker
	}
	return r.MaleNonSmoker
}

func evoCoverage(t models.Table[models.EvoRow], age int, gender models.Gender, smoker models.Smoker) decimal.Decimal {
	r, ok := t.Lookup(age)
	if !ok {
		return decimal.Zero
	}
	var p models.Premium
	switch {
	case gender == models.GenderFemale:
		p = r.Female
	case smoker == models.SmokerYes:
		p = r.MaleSmoker
	default:
		p = r.MaleNonSmoker
	}
	if !p.Valid {
		return decimal.Zero
	}
	return p.Decimal
}
