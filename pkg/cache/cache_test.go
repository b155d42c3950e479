package cache

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"getquote/pkg/models"
)

const defaultLeads = "https://default.example.test/leads"

type fakeClient struct {
	configCalls   atomic.Int32
	ratesCalls    atomic.Int32
	benefitsCalls atomic.Int32

	profile     models.AgentProfile
	rates       string
	benefits    models.BenefitCatalog
	hasBenefits bool
	err         error
	gate        chan struct{}
}

func (f *fakeClient) FetchConfig(ctx context.Context, agentID string) (*models.AgentProfile, error) {
	f.configCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	p := f.profile
	return &p, nil
}

func (f *fakeClient) FetchRates(ctx context.Context, sourceURL string) (json.RawMessage, error) {
	f.ratesCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.rates), nil
}

func (f *fakeClient) FetchBenefits(ctx context.Context) (models.BenefitCatalog, bool, error) {
	f.benefitsCalls.Add(1)
	if f.err != nil {
		return nil, false, f.err
	}
	if !f.hasBenefits {
		return models.BenefitCatalog{}, false, nil
	}
	return f.benefits, true, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, client *fakeClient, store Store) (*RateCache, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)}
	if store == nil {
		store = NewMemoryStore()
	}
	c := NewRateCache(store, client, Options{
		RatesTTL:        5 * time.Minute,
		DefaultLeadsURL: defaultLeads,
		Now:             clk.Now,
	}, zaptest.NewLogger(t))
	return c, clk
}

const ratesPayload = `{"medical150":[{"age":30,"l_ns_basic":100}],"medical200":[{"age":30,"l_ns_basic":200}]}`

func TestRatesFreshnessWindow(t *testing.T) {
	client := &fakeClient{rates: ratesPayload}
	c, clk := newTestCache(t, client, nil)
	ctx := context.Background()

	first, err := c.Rates(ctx, "https://rates", "bj")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	_, ok := first.Tables.Medical150.Lookup(30)
	assert.True(t, ok)

	clk.Advance(4 * time.Minute)
	second, err := c.Rates(ctx, "https://rates", "bj")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.EqualValues(t, 1, client.ratesCalls.Load())

	clk.Advance(2 * time.Minute)
	third, err := c.Rates(ctx, "https://rates", "bj")
	require.NoError(t, err)
	assert.False(t, third.FromCache)
	assert.EqualValues(t, 2, client.ratesCalls.Load())

	// the refetch replaced the entry, so the window restarts
	clk.Advance(4 * time.Minute)
	fourth, err := c.Rates(ctx, "https://rates", "bj")
	require.NoError(t, err)
	assert.True(t, fourth.FromCache)
	assert.EqualValues(t, 2, client.ratesCalls.Load())
}

func TestRatesSeededEntryAges(t *testing.T) {
	store := NewMemoryStore()
	client := &fakeClient{rates: ratesPayload}
	c, clk := newTestCache(t, client, store)
	ctx := context.Background()

	seed := func(age time.Duration) {
		raw, _ := json.Marshal(entry{FetchedAt: clk.Now().Add(-age).UnixMilli(), Source: "network", Data: json.RawMessage(ratesPayload)})
		require.NoError(t, store.Set(ctx, RatesKey("bj"), raw))
	}

	seed(4 * time.Minute)
	r, err := c.Rates(ctx, "https://rates", "bj")
	require.NoError(t, err)
	assert.True(t, r.FromCache)
	assert.EqualValues(t, 0, client.ratesCalls.Load())

	seed(6 * time.Minute)
	r, err = c.Rates(ctx, "https://rates", "bj")
	require.NoError(t, err)
	assert.False(t, r.FromCache)
	assert.EqualValues(t, 1, client.ratesCalls.Load())
}

func TestRatesFailureIsRetryable(t *testing.T) {
	client := &fakeClient{rates: ratesPayload, err: errors.New("offline")}
	c, _ := newTestCache(t, client, nil)
	ctx := context.Background()

	_, err := c.Rates(ctx, "https://rates", "bj")
	assert.ErrorContains(t, err, "offline")

	client.err = nil
	r, err := c.Rates(ctx, "https://rates", "bj")
	require.NoError(t, err)
	assert.NotNil(t, r.Tables)
	assert.EqualValues(t, 2, client.ratesCalls.Load())
}

func TestMalformedEntriesFallThrough(t *testing.T) {
	store := NewMemoryStore()
	client := &fakeClient{
		profile:     models.AgentProfile{Name: "Bakri", LeadsURL: "https://leads"},
		rates:       ratesPayload,
		benefits:    models.BenefitCatalog{"nova": {{Icon: "x", Text: "y"}}},
		hasBenefits: true,
	}
	c, _ := newTestCache(t, client, store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, ConfigKey("bj"), []byte("{not json")))
	require.NoError(t, store.Set(ctx, RatesKey("bj"), []byte(`{"ts":1,"data":null}`)))
	require.NoError(t, store.Set(ctx, BenefitsKey, []byte(`{"ts":1,"data":"oops"}`)))

	p, err := c.Config(ctx, "bj")
	require.NoError(t, err)
	assert.Equal(t, "Bakri", p.Name)

	_, err = c.Rates(ctx, "https://rates", "bj")
	require.NoError(t, err)

	b, err := c.Benefits(ctx)
	require.NoError(t, err)
	assert.Len(t, b["nova"], 1)

	assert.EqualValues(t, 1, client.configCalls.Load())
	assert.EqualValues(t, 1, client.ratesCalls.Load())
	assert.EqualValues(t, 1, client.benefitsCalls.Load())
}

func TestUnreadableNetworkRatesAreNotCached(t *testing.T) {
	store := NewMemoryStore()
	client := &fakeClient{rates: `<html>nope</html>`}
	c, _ := newTestCache(t, client, store)
	ctx := context.Background()

	_, err := c.Rates(ctx, "https://rates", "bj")
	assert.ErrorContains(t, err, "error parsing rates")
	assert.EqualValues(t, 1, client.ratesCalls.Load())

	_, ok, err := store.Get(ctx, RatesKey("bj"))
	require.NoError(t, err)
	assert.False(t, ok)

	client.rates = ratesPayload
	r, err := c.Rates(ctx, "https://rates", "bj")
	require.NoError(t, err)
	assert.False(t, r.FromCache)
	assert.EqualValues(t, 2, client.ratesCalls.Load())
}

func TestConfigNeverExpiresAndInjectsDefaultLeadsURL(t *testing.T) {
	store := NewMemoryStore()
	client := &fakeClient{profile: models.AgentProfile{Name: "Bakri", HargaURL: "https://rates"}}
	c, clk := newTestCache(t, client, store)
	ctx := context.Background()

	p, err := c.Config(ctx, "bj")
	require.NoError(t, err)
	assert.Equal(t, defaultLeads, p.LeadsURL)

	raw, ok, err := store.Get(ctx, ConfigKey("bj"))
	require.NoError(t, err)
	require.True(t, ok)
	var e entry
	require.NoError(t, json.Unmarshal(raw, &e))
	var stored models.AgentProfile
	require.NoError(t, json.Unmarshal(e.Data, &stored))
	assert.Equal(t, defaultLeads, stored.LeadsURL)

	clk.Advance(30 * 24 * time.Hour)
	_, err = c.Config(ctx, "bj")
	require.NoError(t, err)
	assert.EqualValues(t, 1, client.configCalls.Load())

	require.NoError(t, c.InvalidateAgent(ctx, "bj"))
	_, err = c.Config(ctx, "bj")
	require.NoError(t, err)
	assert.EqualValues(t, 2, client.configCalls.Load())
}

func TestConfigErrorIsNotCached(t *testing.T) {
	client := &fakeClient{err: errors.New("agent config rejected: Agent not found")}
	c, _ := newTestCache(t, client, nil)
	ctx := context.Background()

	_, err := c.Config(ctx, "ghost")
	require.Error(t, err)
	_, err = c.Config(ctx, "ghost")
	require.Error(t, err)
	assert.EqualValues(t, 2, client.configCalls.Load())
}

func TestPutConfig(t *testing.T) {
	client := &fakeClient{profile: models.AgentProfile{Name: "Old"}}
	c, _ := newTestCache(t, client, nil)
	ctx := context.Background()

	p, err := c.PutConfig(ctx, "bj", models.AgentProfile{Name: "New", WhatsApp: "60111"})
	require.NoError(t, err)
	assert.Equal(t, defaultLeads, p.LeadsURL)

	got, err := c.Config(ctx, "bj")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.EqualValues(t, 0, client.configCalls.Load())
}

func TestBenefitsCaching(t *testing.T) {
	client := &fakeClient{}
	c, _ := newTestCache(t, client, nil)
	ctx := context.Background()

	// no hibah section: empty and not cached
	b, err := c.Benefits(ctx)
	require.NoError(t, err)
	assert.Empty(t, b)
	_, _ = c.Benefits(ctx)
	assert.EqualValues(t, 2, client.benefitsCalls.Load())

	client.hasBenefits = true
	client.benefits = models.BenefitCatalog{"chinta": {{Icon: "a", Text: "b"}}}
	_, _ = c.Benefits(ctx)
	b, err = c.Benefits(ctx)
	require.NoError(t, err)
	assert.Len(t, b["chinta"], 1)
	assert.EqualValues(t, 3, client.benefitsCalls.Load())

	require.NoError(t, c.InvalidateBenefits(ctx))
	_, _ = c.Benefits(ctx)
	assert.EqualValues(t, 4, client.benefitsCalls.Load())
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	client := &fakeClient{profile: models.AgentProfile{Name: "Bakri"}, gate: make(chan struct{})}
	c, _ := newTestCache(t, client, nil)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Config(ctx, "bj")
			if assert.NoError(t, err) {
				results <- p.Name
			}
		}()
	}

	// let every caller reach the in-flight fetch before releasing it
	require.Eventually(t, func() bool { return client.configCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(client.gate)
	wg.Wait()
	close(results)

	for name := range results {
		assert.Equal(t, "Bakri", name)
	}
	assert.EqualValues(t, 1, client.configCalls.Load())
}

func TestCallerCancellationDoesNotWait(t *testing.T) {
	client := &fakeClient{profile: models.AgentProfile{Name: "Bakri"}, gate: make(chan struct{})}
	c, _ := newTestCache(t, client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Config(ctx, "bj")
	assert.ErrorIs(t, err, context.Canceled)

	close(client.gate)
	p, err := c.Config(context.Background(), "bj")
	require.NoError(t, err)
	assert.Equal(t, "Bakri", p.Name)
}

func TestSQLiteStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "a", []byte("one")))
	require.NoError(t, store.Set(ctx, "a", []byte("two")))
	require.NoError(t, store.Set(ctx, "b", []byte("three")))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	v, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", string(v))

	require.NoError(t, store.Delete(ctx, "a", "b"))
	_, ok, err = store.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, store.Delete(ctx))
}

func TestRateCacheOverSQLite(t *testing.T) {
	store, err := Open("sqlite", filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	client := &fakeClient{rates: ratesPayload, profile: models.AgentProfile{Name: "Bakri"}}
	c, _ := newTestCache(t, client, store)
	ctx := context.Background()

	_, err = c.Rates(ctx, "https://rates", "bj")
	require.NoError(t, err)
	r, err := c.Rates(ctx, "https://rates", "bj")
	require.NoError(t, err)
	assert.True(t, r.FromCache)

	_, err = Open("redis", "")
	assert.Error(t, err)
}
