package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"getquote/pkg/clients/shortio"
	"getquote/pkg/models"
)

const (
	PlanEvo50 = "Hibah Evo 50"

	// DefaultShortenTimeout bounds shortening for a whole quote
	DefaultShortenTimeout = 3 * time.Second

	messageHeader = "Salam, saya berminat dengan Pakej Takaful - GETQUOTE.\n\n" +
		"Berikut adalah butiran saya:\n"
	messageFooter = "Boleh bantu saya untuk langkah seterusnya? Terima kasih."
)

// Handoff is a ready-to-open chat link for one plan on the quote
type Handoff struct {
	Plan  string          `json:"plan"`
	Price decimal.Decimal `json:"price"`
	URL   string          `json:"url"`
}

// HandoffBuilder turns a chosen plan into a wa.me link to the agent
type HandoffBuilder struct {
	defaultNumber  string
	shortener      shortio.Client
	shortenTimeout time.Duration
	logger         *zap.Logger
}

// NewHandoffBuilder creates a builder. shortener may be nil, in which case links are returned long.
func NewHandoffBuilder(defaultNumber string, shortener shortio.Client, logger *zap.Logger) *HandoffBuilder {
	return &HandoffBuilder{
		defaultNumber:  defaultNumber,
		shortener:      shortener,
		shortenTimeout: DefaultShortenTimeout,
		logger:         logger,
	}
}

// WithShortenTimeout changes how long Links waits on the shortener
// before falling back to long links. Non-positive values are ignored.
func (b *HandoffBuilder) WithShortenTimeout(d time.Duration) *HandoffBuilder {
	if d > 0 {
		b.shortenTimeout = d
	}
	return b
}

// Link builds the hand-off for a priced plan. It reports false when the
// plan has no price to offer.
func (b *HandoffBuilder) Link(ctx context.Context, profile models.AgentProfile, inputs models.CustomerInputs, nextAge int, plan string, price models.Premium) (Handoff, bool) {
	h, ok := b.planLink(profile, inputs, nextAge, plan, price)
	if ok {
		h.URL = b.shorten(ctx, h.URL)
	}
	return h, ok
}

// EvoLink builds the hand-off for the fixed-price Evo 50 plan, listing its coverage
func (b *HandoffBuilder) EvoLink(ctx context.Context, profile models.AgentProfile, inputs models.CustomerInputs, nextAge int, coverage decimal.Decimal) Handoff {
	h := b.evoLink(profile, inputs, nextAge, coverage)
	h.URL = b.shorten(ctx, h.URL)
	return h
}

func (b *HandoffBuilder) planLink(profile models.AgentProfile, inputs models.CustomerInputs, nextAge int, plan string, price models.Premium) (Handoff, bool) {
	if !price.Valid || !price.Decimal.IsPositive() {
		return Handoff{}, false
	}

	var msg strings.Builder
	writeDetails(&msg, inputs, nextAge)
	fmt.Fprintf(&msg, "*Pakej Pilihan:* %s\n", plan)
	fmt.Fprintf(&msg, "*Caruman Bulanan:* RM%s\n\n", price.Decimal.StringFixed(2))
	msg.WriteString(messageFooter)

	return Handoff{
		Plan:  plan,
		Price: price.Decimal,
		URL:   b.chatURL(profile, msg.String()),
	}, true
}

func (b *HandoffBuilder) evoLink(profile models.AgentProfile, inputs models.CustomerInputs, nextAge int, coverage decimal.Decimal) Handoff {
	var msg strings.Builder
	writeDetails(&msg, inputs, nextAge)
	fmt.Fprintf(&msg, "*Pakej Pilihan:* %s\n", PlanEvo50)
	fmt.Fprintf(&msg, "*Caruman Bulanan:* RM%s\n\n", models.Evo50Premium.StringFixed(2))
	msg.WriteString("*Manfaat Pelan:*\n")
	fmt.Fprintf(&msg, "- Kematian/Lumpuh: RM%s\n", GroupThousands(coverage))
	msg.WriteString("- Nilai Tunai (Surrender Value)\n")
	msg.WriteString("- Khairat Kematian: RM2,000\n")
	msg.WriteString("- Coverage: Sehingga Umur 80\n")
	msg.WriteString("- Harga: Tetap\n\n")
	msg.WriteString(messageFooter)

	return Handoff{
		Plan:  PlanEvo50,
		Price: models.Evo50Premium,
		URL:   b.chatURL(profile, msg.String()),
	}
}

// Links builds a hand-off for every priced plan on the quote, in display
// order. Links are shortened in parallel under one shared deadline; any
// link not shortened by then stays long.
func (b *HandoffBuilder) Links(ctx context.Context, profile models.AgentProfile, inputs models.CustomerInputs, q models.Quote) []Handoff {
	type offer struct {
		plan  string
		price models.Premium
	}
	var offers []offer
	switch {
	case q.Medical != nil:
		m := q.Medical
		offers = []offer{
			{"Plan Basic Evolusi 150", m.Basic150},
			{"Plan Premium Evolusi 150", m.Full150},
			{"Plan Basic Evolusi 200", m.Basic200},
			{"Plan Premium Evolusi 200", m.Full200},
		}
	case q.Hibah != nil:
		h := q.Hibah
		offers = []offer{
			{"Hibah Nova", h.Nova},
			{"Hibah Nova (Waiver)", h.NovaWaiver},
			{"Hibah Nova (CI + Waiver)", h.NovaCI},
			{"Hibah Chinta", h.Chinta},
			{"Hibah Chinta (Waiver)", h.ChintaWaiver},
			{"Hibah Chinta (CI + Waiver)", h.ChintaCI},
			{"Hibah Inspirasi", h.Inspirasi},
		}
	}

	links := make([]Handoff, 0, len(offers)+1)
	for _, o := range offers {
		if h, ok := b.planLink(profile, inputs, q.NextBirthdayAge, o.plan, o.price); ok {
			links = append(links, h)
		}
	}
	if q.Hibah != nil {
		links = append(links, b.evoLink(profile, inputs, q.NextBirthdayAge, q.Hibah.Evo50))
	}
	b.shortenAll(ctx, links)
	return links
}

func (b *HandoffBuilder) shortenAll(ctx context.Context, links []Handoff) {
	if b.shortener == nil || len(links) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, b.shortenTimeout)
	defer cancel()

	var g errgroup.Group
	for i := range links {
		g.Go(func() error {
			links[i].URL = b.shorten(ctx, links[i].URL)
			return nil
		})
	}
	_ = g.Wait()
}

func (b *HandoffBuilder) chatURL(profile models.AgentProfile, message string) string {
	number := strings.TrimSpace(profile.WhatsApp)
	if number == "" {
		number = b.defaultNumber
	}
	// wa.me wants %20 for spaces; QueryEscape already turns a literal '+' into %2B
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return "https://wa.me/" + number + "?text=" + text
}

func (b *HandoffBuilder) shorten(ctx context.Context, long string) string {
	if b.shortener == nil {
		return long
	}
	short, err := b.shortener.CreateShortLink(ctx, long)
	if err != nil {
		b.logger.Warn("Short link failed, using full link", zap.Error(err))
		return long
	}
	return short
}

func writeDetails(msg *strings.Builder, inputs models.CustomerInputs, nextAge int) {
	msg.WriteString(messageHeader)
	fmt.Fprintf(msg, "*Nama:* %s\n", inputs.Name)
	fmt.Fprintf(msg, "*Umur Seterusnya:* %d Tahun\n", nextAge)
	fmt.Fprintf(msg, "*Nombor Telefon:* %s\n", inputs.Phone)
	fmt.Fprintf(msg, "*Pekerjaan:* %s\n", inputs.Occupation)
	fmt.Fprintf(msg, "*Jantina:* %s\n", inputs.Gender)
	fmt.Fprintf(msg, "*Status Merokok:* %s\n\n", inputs.Smoker)
}

// GroupThousands renders 50000 as 50,000 and keeps any fraction as-is
func GroupThousands(d decimal.Decimal) string {
	s := d.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")

	var out strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(r)
	}
	if hasFrac {
		out.WriteByte('.')
		out.WriteString(frac)
	}
	return sign + out.String()
}
