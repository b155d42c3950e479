package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrMalformedRates is returned when a rate payload is not an object of row arrays
var ErrMalformedRates = errors.New("malformed rate table")

// Rate table keys as published by the pricing sheet
const (
	TableMedical150        = "medical150"
	TableMedical200        = "medical200"
	TableHibahNova         = "hibahNova"
	TableHibahNovaWaiver   = "hibahNovaWaiver"
	TableHibahNovaCI       = "hibahNovaCI"
	TableHibahChinta       = "hibahChinta"
	TableHibahChintaWaiver = "hibahChintaWaiver"
	TableHibahChintaCI     = "hibahChintaCI"
	TableHibahInspirasi    = "hibahInspirasi"
	TableHibahEvo          = "hibahEvo"
)

// Premium is a nullable amount read from a rate cell
type Premium = decimal.NullDecimal

// Amount wraps a known value as a Premium
func Amount(d decimal.Decimal) Premium {
	return Premium{Decimal: d, Valid: true}
}

// NoPremium is the absent value
var NoPremium = Premium{}

type aged interface {
	AgeKey() int
}

// Table holds one product's rows indexed by next-birthday age
type Table[R aged] struct {
	byAge map[int]R
}

// NewTable indexes rows by age. The first row for an age wins.
func NewTable[R aged](rows ...R) Table[R] {
	t := Table[R]{byAge: make(map[int]R, len(rows))}
	for _, r := range rows {
		if _, dup := t.byAge[r.AgeKey()]; dup {
			continue
		}
		t.byAge[r.AgeKey()] = r
	}
	return t
}

// Lookup returns the row for age, if the table has one
func (t Table[R]) Lookup(age int) (R, bool) {
	r, ok := t.byAge[age]
	return r, ok
}

func (t Table[R]) Len() int { return len(t.byAge) }

// MedicalRow carries the medical card rates for one age and one limit tier
type MedicalRow struct {
	Age                int
	MaleSmokerBasic    Premium
	MaleSmokerFull     Premium
	MaleNonSmokerBasic Premium
	MaleNonSmokerFull  Premium
	FemaleBasic        Premium
	FemaleFull         Premium
}

func (r MedicalRow) AgeKey() int { return r.Age }

// HibahRow is shared by the Nova and Chinta families and their addon tables.
// Females have a single column with no smoker split.
type HibahRow struct {
	Age           int
	Female        Premium
	MaleSmoker    Premium
	MaleNonSmoker Premium
}

func (r HibahRow) AgeKey() int { return r.Age }

type InspirasiRow struct {
	Age             int
	MaleSmoker      Premium
	MaleNonSmoker   Premium
	FemaleSmoker    Premium
	FemaleNonSmoker Premium
}

func (r InspirasiRow) AgeKey() int { return r.Age }

// EvoRow holds Evo50 coverage amounts, not premiums. The premium is fixed.
type EvoRow struct {
	Age           int
	Female        Premium
	MaleSmoker    Premium
	MaleNonSmoker Premium
}

func (r EvoRow) AgeKey() int { return r.Age }

// RateTable is every product table for one agent, with columns resolved at load time
type RateTable struct {
	Medical150   Table[MedicalRow]
	Medical200   Table[MedicalRow]
	Nova         Table[HibahRow]
	NovaWaiver   Table[HibahRow]
	NovaCI       Table[HibahRow]
	Chinta       Table[HibahRow]
	ChintaWaiver Table[HibahRow]
	ChintaCI     Table[HibahRow]
	Inspirasi    Table[InspirasiRow]
	Evo          Table[EvoRow]
}

// Column name fallbacks for the hibah tables. Addon sheets label their
// columns with a waiver suffix and casing varies between sheets.
var (
	hibahFemaleKeys        = []string{"p", "p waiver", "P", "P Waiver", "p_waiver", "P_Waiver"}
	hibahMaleSmokerKeys    = []string{"l_s", "l_s waiver", "L_S", "L_S Waiver", "l_s_waiver", "L_S_Waiver"}
	hibahMaleNonSmokerKeys = []string{"l_ns", "l_ns waiver", "L_NS", "L_NS Waiver", "l_ns_waiver", "L_NS_Waiver"}
)

type rawRow map[string]json.RawMessage

// ParseRateTable decodes a pricing payload into typed tables.
// Unknown top-level keys (including cache metadata) are ignored and missing
// tables are left empty.
func ParseRateTable(data []byte) (*RateTable, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRates, err)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrMalformedRates)
	}

	rows := make(map[string][]rawRow)
	for _, key := range []string{
		TableMedical150, TableMedical200,
		TableHibahNova, TableHibahNovaWaiver, TableHibahNovaCI,
		TableHibahChinta, TableHibahChintaWaiver, TableHibahChintaCI,
		TableHibahInspirasi, TableHibahEvo,
	} {
		raw, ok := top[key]
		if !ok || isNull(raw) {
			continue
		}
		var list []rawRow
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: table %s: %v", ErrMalformedRates, key, err)
		}
		rows[key] = list
	}

	return &RateTable{
		Medical150:   buildTable(rows[TableMedical150], medicalRow),
		Medical200:   buildTable(rows[TableMedical200], medicalRow),
		Nova:         buildTable(rows[TableHibahNova], hibahRow),
		NovaWaiver:   buildTable(rows[TableHibahNovaWaiver], hibahRow),
		NovaCI:       buildTable(rows[TableHibahNovaCI], hibahRow),
		Chinta:       buildTable(rows[TableHibahChinta], hibahRow),
		ChintaWaiver: buildTable(rows[TableHibahChintaWaiver], hibahRow),
		ChintaCI:     buildTable(rows[TableHibahChintaCI], hibahRow),
		Inspirasi:    buildTable(rows[TableHibahInspirasi], inspirasiRow),
		Evo:          buildTable(rows[TableHibahEvo], evoRow),
	}, nil
}

func buildTable[R aged](rows []rawRow, build func(age int, r rawRow) R) Table[R] {
	typed := make([]R, 0, len(rows))
	for _, r := range rows {
		age, ok := rowAge(r)
		if !ok {
			continue
		}
		typed = append(typed, build(age, r))
	}
	return NewTable(typed...)
}

func medicalRow(age int, r rawRow) MedicalRow {
	return MedicalRow{
		Age:                age,
		MaleSmokerBasic:    numberCell(r["l_s_basic"]),
		MaleSmokerFull:     numberCell(r["l_s_full"]),
		MaleNonSmokerBasic: numberCell(r["l_ns_basic"]),
		MaleNonSmokerFull:  numberCell(r["l_ns_full"]),
		FemaleBasic:        numberCell(r["p_basic"]),
		FemaleFull:         numberCell(r["p_full"]),
	}
}

func hibahRow(age int, r rawRow) HibahRow {
	return HibahRow{
		Age:           age,
		Female:        firstSet(r, hibahFemaleKeys),
		MaleSmoker:    firstSet(r, hibahMaleSmokerKeys),
		MaleNonSmoker: firstSet(r, hibahMaleNonSmokerKeys),
	}
}

func inspirasiRow(age int, r rawRow) InspirasiRow {
	return InspirasiRow{
		Age:             age,
		MaleSmoker:      numberCell(r["l_s"]),
		MaleNonSmoker:   numberCell(r["l_ns"]),
		FemaleSmoker:    numberCell(r["p_s"]),
		FemaleNonSmoker: numberCell(r["p_ns"]),
	}
}

func evoRow(age int, r rawRow) EvoRow {
	return EvoRow{
		Age:           age,
		Female:        numberCell(r["rm50_p"]),
		MaleSmoker:    numberCell(r["rm50_ls"]),
		MaleNonSmoker: numberCell(r["rm50_lns"]),
	}
}

// rowAge only accepts integral JSON numbers; "25" as a string never matches.
func rowAge(r rawRow) (int, bool) {
	p := numberCell(r["age"])
	if !p.Valid || !p.Decimal.IsInteger() {
		return 0, false
	}
	return int(p.Decimal.IntPart()), true
}

// firstSet walks the candidate columns and takes the first one holding a
// non-empty value. A non-numeric value found that way is still absent. When
// nothing is set the last candidate decides, so an explicit 0 survives.
func firstSet(r rawRow, keys []string) Premium {
	for _, k := range keys {
		if raw, ok := r[k]; ok && isSet(raw) {
			return numberCell(raw)
		}
	}
	return numberCell(r[keys[len(keys)-1]])
}

// numberCell only accepts JSON numbers. Strings, booleans and null are absent.
func numberCell(raw json.RawMessage) Premium {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return NoPremium
	}
	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return NoPremium
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return NoPremium
	}
	return Amount(d)
}

func isSet(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, isNull(raw), string(raw) == "false", string(raw) == `""`:
		return false
	}
	if p := numberCell(raw); p.Valid {
		return !p.Decimal.IsZero()
	}
	return true
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
