package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"getquote/pkg/models"
	"getquote/pkg/quote"
	"getquote/pkg/services"
)

var (
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af")).Strikethrough(true)
	linkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#128C7E"))
)

type planCard struct {
	title    string
	price    models.Premium
	benefits []models.BenefitItem
	link     string
}

// renderQuote lays the plans out as cards in the agent's theme colors
func renderQuote(session *services.Session, res *services.QuoteResult, novaAddon, chintaAddon quote.Addon) string {
	primary, secondary := session.Profile.Theme()
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(primary))
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(secondary)).
		Padding(0, 1)

	var heading string
	var cards []planCard
	q := res.Quote
	links := linksByPlan(res.Handoffs)

	switch {
	case q.Medical != nil:
		heading = "Pakej Medical Card"
		for _, c := range []struct {
			title string
			price models.Premium
		}{
			{"Plan Basic Evolusi 150", q.Medical.Basic150},
			{"Plan Premium Evolusi 150", q.Medical.Full150},
			{"Plan Basic Evolusi 200", q.Medical.Basic200},
			{"Plan Premium Evolusi 200", q.Medical.Full200},
		} {
			cards = append(cards, planCard{title: c.title, price: c.price, link: links[c.title]})
		}
	case q.Hibah != nil:
		heading = "Pakej Hibah"
		for _, f := range []struct {
			family quote.Family
			addon  quote.Addon
		}{
			{quote.FamilyNova, novaAddon},
			{quote.FamilyChinta, chintaAddon},
		} {
			title := familyTitle(f.family, f.addon)
			link, ok := links[title]
			if !ok {
				// an unpriced addon shows the base price
				link = links[familyTitle(f.family, quote.AddonNone)]
			}
			cards = append(cards, planCard{
				title:    title,
				price:    quote.PlanPrice(q.Hibah, f.family, f.addon),
				benefits: quote.SelectBenefits(session.Benefits, f.family, f.addon),
				link:     link,
			})
		}
		cards = append(cards,
			planCard{title: "Hibah Inspirasi", price: q.Hibah.Inspirasi, link: links["Hibah Inspirasi"]},
			planCard{
				title:    services.PlanEvo50,
				price:    models.Amount(models.Evo50Premium),
				benefits: evoBenefits(q.Hibah.Evo50),
				link:     links[services.PlanEvo50],
			},
		)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(heading))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s\n\n", mutedStyle.Render(fmt.Sprintf("Agen: %s | Umur: %d Tahun", session.Profile.Name, q.NextBirthdayAge)))

	for _, c := range cards {
		b.WriteString(cardStyle.Render(c.render(titleStyle)))
		b.WriteString("\n")
	}
	return b.String()
}

func (c planCard) render(titleStyle lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(c.title))
	b.WriteString("\n")
	if c.price.Valid && c.price.Decimal.IsPositive() {
		fmt.Fprintf(&b, "Caruman Bulanan: RM%s\n", c.price.Decimal.StringFixed(2))
	} else {
		b.WriteString(disabledStyle.Render("Caruman Bulanan: RM0.00"))
		b.WriteString("\n")
	}
	for _, item := range c.benefits {
		line := "- " + item.Text
		if item.Value != "" {
			line += " " + item.Value
		}
		b.WriteString(line + "\n")
	}
	if c.link != "" {
		b.WriteString(linkStyle.Render(c.link))
	} else {
		b.WriteString(mutedStyle.Render("Tiada pautan WhatsApp"))
	}
	return b.String()
}

// renderLeads prints one line per lead
func renderLeads(records []models.LeadRecord) string {
	if len(records) == 0 {
		return mutedStyle.Render("Tiada lead lagi.")
	}
	header := lipgloss.NewStyle().Bold(true)
	row := func(cols ...string) string {
		return fmt.Sprintf("%-20s %-24s %-14s %-8s %s", cols[0], cols[1], cols[2], cols[3], cols[4])
	}

	var b strings.Builder
	b.WriteString(header.Render(row("Tarikh", "Nama", "Telefon", "Pelan", "Status")))
	for _, r := range records {
		when := r.Timestamp
		if t := r.When(); !t.IsZero() {
			when = t.Format("02/01/2006 15:04")
		} else if when == "" {
			when = r.Date
		}
		b.WriteString("\n")
		b.WriteString(row(when, r.Name, r.DialablePhone(), r.PlanType, r.Status))
	}
	fmt.Fprintf(&b, "\n\n%s", mutedStyle.Render(fmt.Sprintf("%d lead", len(records))))
	return b.String()
}

func familyTitle(family quote.Family, addon quote.Addon) string {
	title := "Hibah Nova"
	if family == quote.FamilyChinta {
		title = "Hibah Chinta"
	}
	switch addon {
	case quote.AddonWaiver:
		return title + " (Waiver)"
	case quote.AddonCI:
		return title + " (CI + Waiver)"
	}
	return title
}

func evoBenefits(coverage decimal.Decimal) []models.BenefitItem {
	return []models.BenefitItem{
		{Icon: "hibah", Text: "Kematian/Lumpuh:", Value: "RM" + services.GroupThousands(coverage)},
		{Icon: "saving", Text: "Nilai Tunai", Value: "(Surrender Value)"},
		{Icon: "khairat", Text: "Khairat Kematian:", Value: "RM2,000"},
		{Icon: "coverage", Text: "Coverage:", Value: "Sehingga Umur 80"},
		{Icon: "tag", Text: "Harga:", Value: "Tetap"},
	}
}

func linksByPlan(handoffs []services.Handoff) map[string]string {
	out := make(map[string]string, len(handoffs))
	for _, h := range handoffs {
		out[h.Plan] = h.URL
	}
	return out
}
