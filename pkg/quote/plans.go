package quote

import (
	"strings"

	"getquote/pkg/models"
)

// Addon is an optional rider on a Nova or Chinta plan. The riders are
// mutually exclusive.
type Addon string

const (
	AddonNone   Addon = ""
	AddonWaiver Addon = "waiver"
	AddonCI     Addon = "ci"
)

// Family names a hibah product line that carries addons
type Family string

const (
	FamilyNova   Family = "nova"
	FamilyChinta Family = "chinta"
)

// PlanPrice returns the displayed monthly price for a family with an addon
// selected. An addon without a price falls back to the base plan.
func PlanPrice(h *models.HibahQuote, family Family, addon Addon) models.Premium {
	if h == nil {
		return models.NoPremium
	}

	var base, waiver, ci models.Premium
	switch family {
	case FamilyNova:
		base, waiver, ci = h.Nova, h.NovaWaiver, h.NovaCI
	case FamilyChinta:
		base, waiver, ci = h.Chinta, h.ChintaWaiver, h.ChintaCI
	default:
		return models.NoPremium
	}

	if addon == AddonCI && positive(ci) {
		return ci
	}
	if addon == AddonWaiver && positive(waiver) {
		return waiver
	}
	if positive(base) {
		return base
	}
	return models.NoPremium
}

// SelectBenefits picks the benefit lines for a family and addon, falling
// back to the base family lines, with icons normalised for display.
func SelectBenefits(catalog models.BenefitCatalog, family Family, addon Addon) []models.BenefitItem {
	base := string(family)
	var items []models.BenefitItem
	switch addon {
	case AddonCI:
		items = firstNonEmpty(catalog[base+"CI"], catalog[base])
	case AddonWaiver:
		items = firstNonEmpty(catalog[base+"Waiver"], catalog[base])
	default:
		items = catalog[base]
	}
	return ClassifyIcons(items)
}

var iconRules = []struct {
	icon     string
	keywords []string
}{
	{"hibah", []string{"kematian", "lumpuh", "death"}},
	{"khairat", []string{"khairat", "funeral"}},
	{"saving", []string{"tunai", "cash", "value", "saving"}},
	{"waiver", []string{"waiver"}},
	{"kanser", []string{"kritikal", "critical", "cancer"}},
	{"coverage", []string{"coverage", "tempoh", "sehingga", "expiry"}},
	{"tag", []string{"harga", "price", "fee"}},
	{"bilik", []string{"hospital", "bilik"}},
	{"tahunan", []string{"limit", "had"}},
}

// ClassifyIcons maps free-text benefit lines onto the known icon set by
// keyword. Lines that match nothing keep the icon the sheet gave them.
func ClassifyIcons(items []models.BenefitItem) []models.BenefitItem {
	out := make([]models.BenefitItem, 0, len(items))
	for _, item := range items {
		text := strings.ToLower(item.Text + " " + item.Value)
	rules:
		for _, rule := range iconRules {
			for _, kw := range rule.keywords {
				if strings.Contains(text, kw) {
					item.Icon = rule.icon
					break rules
				}
			}
		}
		out = append(out, item)
	}
	return out
}

func firstNonEmpty(lists ...[]models.BenefitItem) []models.BenefitItem {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

func positive(p models.Premium) bool {
	return p.Valid && p.Decimal.IsPositive()
}
