package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"getquote/pkg/cache"
	"getquote/pkg/clients/leadstore"
	"getquote/pkg/models"
)

const testRates = `{
	"medical150": [{"age": 31, "l_s_basic": 120, "l_s_full": 150, "l_ns_basic": 100, "l_ns_full": 130, "p_basic": 90, "p_full": 110}],
	"medical200": [{"age": 31, "l_s_basic": 140, "l_s_full": 170, "l_ns_basic": 115, "l_ns_full": 145, "p_basic": 95, "p_full": 125}],
	"hibahNova": [{"age": 31, "p": 40, "l_s": 55, "l_ns": 45}],
	"hibahNovaWaiver": [{"age": 31, "p": 42, "l_s": 58, "l_ns": 47}],
	"hibahChinta": [{"age": 31, "p": 30, "l_s": 38, "l_ns": 33}],
	"hibahInspirasi": [{"age": 31, "l_s": 60, "l_ns": 50, "p_s": 52, "p_ns": 44}],
	"hibahEvo": [{"age": 31, "rm50_p": 60000, "rm50_ls": 40000, "rm50_lns": 50000}]
}`

var testNow = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

type fakeRateSource struct {
	mu          sync.Mutex
	profile     models.AgentProfile
	benefits    models.BenefitCatalog
	configErr   error
	benefitsErr error
	ratesErr    error
	ratesCalls  atomic.Int32
	puts        []models.AgentProfile
}

func (f *fakeRateSource) Config(_ context.Context, _ string) (*models.AgentProfile, error) {
	if f.configErr != nil {
		return nil, f.configErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profile
	return &p, nil
}

func (f *fakeRateSource) PutConfig(_ context.Context, _ string, profile models.AgentProfile) (*models.AgentProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = profile
	f.puts = append(f.puts, profile)
	return &profile, nil
}

func (f *fakeRateSource) Rates(_ context.Context, _, _ string) (*cache.Rates, error) {
	f.ratesCalls.Add(1)
	if f.ratesErr != nil {
		return nil, f.ratesErr
	}
	tables, err := models.ParseRateTable([]byte(testRates))
	if err != nil {
		return nil, err
	}
	return &cache.Rates{Tables: tables, FetchedAt: testNow, FromCache: true}, nil
}

func (f *fakeRateSource) Benefits(_ context.Context) (models.BenefitCatalog, error) {
	return f.benefits, f.benefitsErr
}

type recordingSubmitter struct {
	mu           sync.Mutex
	destinations []string
	leads        []models.Lead
}

func (r *recordingSubmitter) Submit(destination string, lead models.Lead) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destinations = append(r.destinations, destination)
	r.leads = append(r.leads, lead)
	return "sub-1"
}

type serviceFixture struct {
	svc    *QuotationService
	source *fakeRateSource
	leads  *recordingSubmitter
	store  *fakeLeadStore
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	source := &fakeRateSource{
		profile: models.AgentProfile{
			Name:     "Agent BJ",
			WhatsApp: "60123456789",
			HargaURL: "https://rates.example.test",
			LeadsURL: "https://leads.example.test",
		},
		benefits: models.BenefitCatalog{
			"nova":       {{Icon: "x", Text: "Hibah Kematian", Value: "RM100,000"}},
			"novaWaiver": {{Icon: "x", Text: "Waiver Caruman"}},
		},
	}
	leads := &recordingSubmitter{}
	store := &fakeLeadStore{}
	logger := zaptest.NewLogger(t)
	svc := NewQuotationService(source, leads, store, NewHandoffBuilder("60173225153", nil, logger),
		ServiceOptions{Now: func() time.Time { return testNow }}, logger)
	return &serviceFixture{svc: svc, source: source, leads: leads, store: store}
}

func validInputs(plan models.PlanType) models.CustomerInputs {
	return models.CustomerInputs{
		PlanType:   plan,
		Name:       "Ahmad",
		DOB:        "01/01/1994",
		Phone:      "0123456789",
		Occupation: "Jurutera",
		Gender:     models.GenderMale,
		Smoker:     models.SmokerNo,
	}
}

func TestOpenLoadsProfileAndBenefits(t *testing.T) {
	f := newFixture(t)

	session, err := f.svc.Open(context.Background(), "bj")
	require.NoError(t, err)
	assert.Equal(t, "bj", session.AgentID)
	assert.Equal(t, "Agent BJ", session.Profile.Name)
	assert.Len(t, session.Benefits, 2)
	assert.Equal(t, testNow, session.OpenedAt)
	assert.EqualValues(t, 1, f.source.ratesCalls.Load(), "rates are warmed on open")
}

func TestOpenFailures(t *testing.T) {
	f := newFixture(t)
	f.source.configErr = errors.New("script timed out")
	_, err := f.svc.Open(context.Background(), "bj")
	assert.ErrorIs(t, err, ErrInitialization)

	f = newFixture(t)
	f.source.benefitsErr = errors.New("script timed out")
	_, err = f.svc.Open(context.Background(), "bj")
	assert.ErrorIs(t, err, ErrInitialization)
}

func TestOpenToleratesRatePrefetchFailure(t *testing.T) {
	f := newFixture(t)
	f.source.ratesErr = errors.New("sheet offline")

	session, err := f.svc.Open(context.Background(), "bj")
	require.NoError(t, err)
	assert.NotNil(t, session)
}

func TestOpenWithoutRatePrefetchHitsRateSourceOnce(t *testing.T) {
	f := newFixture(t)
	f.source.ratesErr = errors.New("sheet offline")

	session, err := f.svc.Open(context.Background(), "bj", WithoutRatePrefetch())
	require.NoError(t, err)
	assert.Zero(t, f.source.ratesCalls.Load())

	_, err = f.svc.Quote(context.Background(), session, validInputs(models.PlanMedical))
	assert.ErrorIs(t, err, ErrRatesUnavailable)
	assert.EqualValues(t, 1, f.source.ratesCalls.Load())
}

func TestPrefetchesRates(t *testing.T) {
	assert.True(t, PrefetchesRates())
	assert.False(t, PrefetchesRates(WithoutRatePrefetch()))
}

func TestQuoteMedical(t *testing.T) {
	f := newFixture(t)
	session, err := f.svc.Open(context.Background(), "bj")
	require.NoError(t, err)

	res, err := f.svc.Quote(context.Background(), session, validInputs(models.PlanMedical))
	require.NoError(t, err)

	assert.Equal(t, 31, res.Quote.NextBirthdayAge)
	require.NotNil(t, res.Quote.Medical)
	assert.Nil(t, res.Quote.Hibah)
	assert.True(t, res.Quote.Medical.Basic150.Decimal.Equal(decimal.NewFromInt(100)))
	assert.True(t, res.Quote.Medical.Full200.Decimal.Equal(decimal.NewFromInt(145)))
	assert.Len(t, res.Handoffs, 4)
	assert.Nil(t, res.Benefits)
	assert.True(t, res.FromCache)
	assert.Equal(t, "sub-1", res.SubmissionID)

	require.Len(t, f.leads.leads, 1)
	assert.Equal(t, "https://leads.example.test", f.leads.destinations[0])
	assert.Equal(t, "bj", f.leads.leads[0].AgentID)
	assert.Equal(t, "Ahmad", f.leads.leads[0].Name)
}

func TestQuoteHibah(t *testing.T) {
	f := newFixture(t)
	session, err := f.svc.Open(context.Background(), "bj")
	require.NoError(t, err)

	in := validInputs(models.PlanHibah)
	in.Gender = models.GenderFemale
	res, err := f.svc.Quote(context.Background(), session, in)
	require.NoError(t, err)

	h := res.Quote.Hibah
	require.NotNil(t, h)
	assert.True(t, h.Nova.Decimal.Equal(decimal.NewFromInt(40)))
	assert.True(t, h.Inspirasi.Decimal.Equal(decimal.NewFromInt(44)))
	assert.True(t, h.Evo50.Equal(decimal.NewFromInt(60000)))
	assert.False(t, h.NovaCI.Valid)

	// nova, novaWaiver, chinta, inspirasi and evo 50
	assert.Len(t, res.Handoffs, 5)
	require.NotNil(t, res.Benefits)
	assert.Len(t, res.Benefits["novaCI"], 1, "CI falls back to the base nova lines")
	assert.Equal(t, "Waiver Caruman", res.Benefits["novaWaiver"][0].Text)
	assert.Empty(t, res.Benefits["chinta"])
}

func TestQuoteNormalisesEnglishAnswers(t *testing.T) {
	f := newFixture(t)
	session, err := f.svc.Open(context.Background(), "bj")
	require.NoError(t, err)

	in := validInputs(models.PlanMedical)
	in.Gender = "Male"
	in.Smoker = "yes"
	in.Name = "  Ahmad  "
	res, err := f.svc.Quote(context.Background(), session, in)
	require.NoError(t, err)

	assert.True(t, res.Quote.Medical.Basic150.Decimal.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, models.GenderMale, f.leads.leads[0].Gender)
	assert.Equal(t, "Ahmad", f.leads.leads[0].Name)
}

func TestQuoteValidation(t *testing.T) {
	f := newFixture(t)
	session, err := f.svc.Open(context.Background(), "bj")
	require.NoError(t, err)

	in := validInputs(models.PlanMedical)
	in.Occupation = ""
	_, err = f.svc.Quote(context.Background(), session, in)
	assert.ErrorIs(t, err, ErrIncompleteForm)
	assert.Contains(t, err.Error(), "Occupation")

	in = validInputs("travel")
	_, err = f.svc.Quote(context.Background(), session, in)
	assert.ErrorIs(t, err, ErrIncompleteForm)

	in = validInputs(models.PlanMedical)
	in.DOB = "01/01/1950"
	_, err = f.svc.Quote(context.Background(), session, in)
	assert.ErrorIs(t, err, ErrAgeOutOfRange)

	in = validInputs(models.PlanMedical)
	in.DOB = "not a date"
	_, err = f.svc.Quote(context.Background(), session, in)
	assert.ErrorIs(t, err, ErrAgeOutOfRange)

	assert.Empty(t, f.leads.leads, "rejected forms are not recorded")

	// the same session accepts a corrected form
	_, err = f.svc.Quote(context.Background(), session, validInputs(models.PlanMedical))
	assert.NoError(t, err)
}

func TestQuoteRatesUnavailable(t *testing.T) {
	f := newFixture(t)
	session, err := f.svc.Open(context.Background(), "bj")
	require.NoError(t, err)

	f.source.ratesErr = errors.New("sheet offline")
	_, err = f.svc.Quote(context.Background(), session, validInputs(models.PlanMedical))
	assert.ErrorIs(t, err, ErrRatesUnavailable)
	assert.Empty(t, f.leads.leads)

	f.source.ratesErr = nil
	_, err = f.svc.Quote(context.Background(), session, validInputs(models.PlanMedical))
	assert.NoError(t, err, "retry succeeds once rates are back")

	session.Profile.HargaURL = ""
	_, err = f.svc.Quote(context.Background(), session, validInputs(models.PlanMedical))
	assert.ErrorIs(t, err, ErrRatesUnavailable)
}

func TestQuoteCalcDelayHonoursContext(t *testing.T) {
	f := newFixture(t)
	f.svc.calcDelay = time.Hour
	session, err := f.svc.Open(context.Background(), "bj")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.svc.Quote(ctx, session, validInputs(models.PlanMedical))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpdateLeadsURL(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.UpdateLeadsURL(context.Background(), "bj", " https://new.example.test/exec ")
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.test/exec", p.LeadsURL)
	assert.Equal(t, "Agent BJ", p.Name, "other fields are kept")

	for _, bad := range []string{"", "not a url", "ftp://files.example.test", "/relative"} {
		_, err = f.svc.UpdateLeadsURL(context.Background(), "bj", bad)
		assert.ErrorIs(t, err, ErrInvalidLeadsURL, bad)
	}
	assert.Len(t, f.source.puts, 1)
}

func TestUpdateProfileClearsError(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.UpdateProfile(context.Background(), "bj", models.AgentProfile{Name: "Edited", Error: "stale"})
	require.NoError(t, err)
	assert.Equal(t, "Edited", p.Name)
	assert.Empty(t, p.Error)
}

func TestLeadsNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.store.records = []models.LeadRecord{
		{Name: "old", Timestamp: "2024-01-01T10:00:00Z"},
		{Name: "new", Timestamp: "2024-06-01T10:00:00Z"},
		{Name: "undated"},
		{Name: "mid", Date: "2024-03-01"},
	}

	records, err := f.svc.Leads(context.Background(), "bj")
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"new", "mid", "old", "undated"}, []string{records[0].Name, records[1].Name, records[2].Name, records[3].Name})
	assert.Equal(t, "https://leads.example.test", f.store.listedAt)
}

func TestLeadsPassesClassifiedErrors(t *testing.T) {
	f := newFixture(t)
	f.store.listErr = &leadstore.Error{Kind: leadstore.KindPermission, Hint: "share the sheet"}

	_, err := f.svc.Leads(context.Background(), "bj")
	assert.ErrorIs(t, err, leadstore.ErrPermission)

	var lsErr *leadstore.Error
	require.True(t, errors.As(err, &lsErr))
	assert.Equal(t, "share the sheet", lsErr.Hint)
}
