package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"getquote/pkg/age"
	"getquote/pkg/cache"
	"getquote/pkg/clients/leadstore"
	"getquote/pkg/models"
	"getquote/pkg/quote"
)

var (
	ErrInitialization   = errors.New("failed to load agent configuration")
	ErrIncompleteForm   = errors.New("please complete all fields")
	ErrAgeOutOfRange    = errors.New("age must be between 1 and 70")
	ErrRatesUnavailable = errors.New("rate tables unavailable, please try again")
	ErrInvalidLeadsURL  = errors.New("leads url must be an http(s) address")
)

// RateSource is the cached view of the remote endpoints the service reads from
type RateSource interface {
	Config(ctx context.Context, agentID string) (*models.AgentProfile, error)
	PutConfig(ctx context.Context, agentID string, profile models.AgentProfile) (*models.AgentProfile, error)
	Rates(ctx context.Context, sourceURL, agentID string) (*cache.Rates, error)
	Benefits(ctx context.Context) (models.BenefitCatalog, error)
}

// LeadSubmitter hands a lead off for background delivery
type LeadSubmitter interface {
	Submit(destination string, lead models.Lead) string
}

// LeadLister reads captured leads back from a lead store
type LeadLister interface {
	List(ctx context.Context, source string) ([]models.LeadRecord, error)
}

// Session is what a visitor's page holds after opening an agent's quotation page
type Session struct {
	AgentID  string                `json:"agentId"`
	Profile  models.AgentProfile   `json:"profile"`
	Benefits models.BenefitCatalog `json:"benefits"`
	OpenedAt time.Time             `json:"openedAt"`
}

// QuoteResult is the response to one form submission
type QuoteResult struct {
	Quote          models.Quote                    `json:"quote"`
	Handoffs       []Handoff                       `json:"handoffs"`
	Benefits       map[string][]models.BenefitItem `json:"benefits,omitempty"`
	RatesFetchedAt time.Time                       `json:"ratesFetchedAt"`
	FromCache      bool                            `json:"fromCache"`
	SubmissionID   string                          `json:"submissionId,omitempty"`
}

// ServiceOptions tune a QuotationService. CalcDelay pauses before a quote is
// returned, as the quotation page does for effect; zero disables it.
type ServiceOptions struct {
	CalcDelay time.Duration
	Now       func() time.Time
}

// QuotationService runs the quotation flow for one agent page at a time:
// open a session, validate a form, price it and record the lead.
type QuotationService struct {
	rates     RateSource
	leads     LeadSubmitter
	lister    LeadLister
	handoff   *HandoffBuilder
	validate  *validator.Validate
	calcDelay time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewQuotationService(rates RateSource, leads LeadSubmitter, lister LeadLister, handoff *HandoffBuilder, opts ServiceOptions, logger *zap.Logger) *QuotationService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &QuotationService{
		rates:     rates,
		leads:     leads,
		lister:    lister,
		handoff:   handoff,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		calcDelay: opts.CalcDelay,
		now:       opts.Now,
		logger:    logger,
	}
}

// OpenOption adjusts how a session is opened
type OpenOption func(*openOptions)

type openOptions struct {
	prefetchRates bool
}

// WithoutRatePrefetch skips warming the rate tables. Callers that quote
// straight after opening use it so the rate source is hit once.
func WithoutRatePrefetch() OpenOption {
	return func(o *openOptions) { o.prefetchRates = false }
}

// PrefetchesRates reports whether Open warms the rate tables under opts
func PrefetchesRates(opts ...OpenOption) bool {
	o := openOptions{prefetchRates: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o.prefetchRates
}

// Open loads the agent's profile and the benefit catalog together. Either
// failing ends the session. Rate tables are warmed when the profile names a
// source, but a failure there only surfaces once a quote is requested.
func (s *QuotationService) Open(ctx context.Context, agentID string, opts ...OpenOption) (*Session, error) {
	var (
		profile  *models.AgentProfile
		benefits models.BenefitCatalog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.rates.Config(gctx, agentID)
		if err != nil {
			return fmt.Errorf("error fetching config: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		b, err := s.rates.Benefits(gctx)
		if err != nil {
			return fmt.Errorf("error fetching benefits: %w", err)
		}
		benefits = b
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Session open failed", zap.String("agent", agentID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	if profile.HargaURL != "" && PrefetchesRates(opts...) {
		if _, err := s.rates.Rates(ctx, profile.HargaURL, agentID); err != nil {
			s.logger.Warn("Rate prefetch failed", zap.String("agent", agentID), zap.Error(err))
		}
	}

	if benefits == nil {
		benefits = models.BenefitCatalog{}
	}
	return &Session{
		AgentID:  agentID,
		Profile:  *profile,
		Benefits: benefits,
		OpenedAt: s.now(),
	}, nil
}

// Quote validates the form, prices it against the agent's current rate
// tables and records the lead. Validation and rate errors leave the session
// usable; the caller may correct the form and submit again.
func (s *QuotationService) Quote(ctx context.Context, session *Session, inputs models.CustomerInputs) (*QuoteResult, error) {
	inputs, err := s.normalise(inputs)
	if err != nil {
		return nil, err
	}

	nextAge := age.NextBirthday(inputs.DOB, s.now())
	if !age.Valid(nextAge) {
		return nil, fmt.Errorf("%w: got %d", ErrAgeOutOfRange, nextAge)
	}

	if session.Profile.HargaURL == "" {
		return nil, fmt.Errorf("%w: no rate source configured for %s", ErrRatesUnavailable, session.AgentID)
	}
	rates, err := s.rates.Rates(ctx, session.Profile.HargaURL, session.AgentID)
	if err != nil {
		s.logger.Warn("Rates unavailable", zap.String("agent", session.AgentID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRatesUnavailable, err)
	}

	if s.calcDelay > 0 {
		select {
		case <-time.After(s.calcDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	q := quote.Resolve(inputs.PlanType, nextAge, inputs.Gender, inputs.Smoker, rates.Tables)
	result := &QuoteResult{
		Quote:          q,
		Handoffs:       s.handoff.Links(ctx, session.Profile, inputs, q),
		RatesFetchedAt: rates.FetchedAt,
		FromCache:      rates.FromCache,
	}
	if q.Hibah != nil {
		result.Benefits = hibahBenefits(session.Benefits)
	}

	result.SubmissionID = s.leads.Submit(session.Profile.LeadsURL, models.Lead{
		CustomerInputs: inputs,
		AgentID:        session.AgentID,
	})
	return result, nil
}

// UpdateProfile replaces the agent's cached profile with an edited one
func (s *QuotationService) UpdateProfile(ctx context.Context, agentID string, profile models.AgentProfile) (*models.AgentProfile, error) {
	profile.Error = ""
	return s.rates.PutConfig(ctx, agentID, profile)
}

// UpdateLeadsURL points the agent's leads at a different sheet
func (s *QuotationService) UpdateLeadsURL(ctx context.Context, agentID, leadsURL string) (*models.AgentProfile, error) {
	u, err := url.ParseRequestURI(strings.TrimSpace(leadsURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidLeadsURL
	}
	profile, err := s.rates.Config(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	profile.LeadsURL = u.String()
	return s.rates.PutConfig(ctx, agentID, *profile)
}

// Leads reads the agent's captured leads, newest first
func (s *QuotationService) Leads(ctx context.Context, agentID string) ([]models.LeadRecord, error) {
	profile, err := s.rates.Config(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	records, err := s.lister.List(ctx, profile.LeadsURL)
	if err != nil {
		var lsErr *leadstore.Error
		if errors.As(err, &lsErr) {
			s.logger.Warn("Lead store read failed", zap.String("agent", agentID), zap.String("kind", string(lsErr.Kind)))
		}
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].When().After(records[j].When())
	})
	return records, nil
}

// normalise trims the form and maps English gender/smoker answers onto the
// form values before checking that every field is present.
func (s *QuotationService) normalise(in models.CustomerInputs) (models.CustomerInputs, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.DOB = strings.TrimSpace(in.DOB)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Occupation = strings.TrimSpace(in.Occupation)
	in.PlanType = models.PlanType(strings.ToLower(strings.TrimSpace(string(in.PlanType))))
	if g := models.ParseGender(string(in.Gender)); g != "" {
		in.Gender = g
	}
	if sm := models.ParseSmoker(string(in.Smoker)); sm != "" {
		in.Smoker = sm
	}

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return in, fmt.Errorf("%w: %s", ErrIncompleteForm, strings.Join(fields, ", "))
		}
		return in, fmt.Errorf("%w: %w", ErrIncompleteForm, err)
	}
	return in, nil
}

func hibahBenefits(catalog models.BenefitCatalog) map[string][]models.BenefitItem {
	out := make(map[string][]models.BenefitItem)
	for _, family := range []quote.Family{quote.FamilyNova, quote.FamilyChinta} {
		out[string(family)] = quote.SelectBenefits(catalog, family, quote.AddonNone)
		out[string(family)+"Waiver"] = quote.SelectBenefits(catalog, family, quote.AddonWaiver)
		out[string(family)+"CI"] = quote.SelectBenefits(catalog, family, quote.AddonCI)
	}
	return out
}
