package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"getquote/pkg/clients/appscript"
	"getquote/pkg/models"
)

const (
	BenefitsKey   = "benefits_data_v1"
	sourceNetwork = "network"
	sourceEdit    = "edit"
)

// ConfigKey is the store key for an agent's profile
func ConfigKey(agentID string) string { return "agent_config_" + agentID }

// RatesKey is the store key for an agent's rate tables
func RatesKey(agentID string) string { return "pricing_data_" + agentID }

// entry is what goes into the store. FetchedAt is unix milliseconds.
type entry struct {
	FetchedAt int64           `json:"ts"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
}

// Options tune a RateCache. Zero values fall back to the defaults.
type Options struct {
	RatesTTL        time.Duration
	DefaultLeadsURL string
	Now             func() time.Time
}

// RateCache serves agent configs, benefits and rate tables from a Store,
// fetching through the Apps Script client on a miss. Configs and benefits
// never expire on their own; rate tables are fresh for RatesTTL after fetch.
// Concurrent misses for the same key share one fetch.
type RateCache struct {
	store           Store
	client          appscript.Client
	group           singleflight.Group
	ratesTTL        time.Duration
	defaultLeadsURL string
	now             func() time.Time
	logger          *zap.Logger
}

// Rates is a rate table with where it came from
type Rates struct {
	Tables    *models.RateTable
	FetchedAt time.Time
	FromCache bool
}

func NewRateCache(store Store, client appscript.Client, opts Options, logger *zap.Logger) *RateCache {
	if opts.RatesTTL <= 0 {
		opts.RatesTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RateCache{
		store:           store,
		client:          client,
		ratesTTL:        opts.RatesTTL,
		defaultLeadsURL: opts.DefaultLeadsURL,
		now:             opts.Now,
		logger:          logger,
	}
}

// Config returns the agent's profile. A profile without a lead destination
// gets the default one before it is stored, so callers always see one.
func (c *RateCache) Config(ctx context.Context, agentID string) (*models.AgentProfile, error) {
	key := ConfigKey(agentID)

	if e, ok := c.load(ctx, key); ok {
		var p models.AgentProfile
		if err := json.Unmarshal(e.Data, &p); err == nil {
			c.withDefaults(&p)
			return &p, nil
		}
		c.logger.Warn("Discarding unreadable cached config", zap.String("key", key))
	}

	v, err := c.fetch(ctx, key, func(ctx context.Context) (any, error) {
		p, err := c.client.FetchConfig(ctx, agentID)
		if err != nil {
			return nil, err
		}
		c.withDefaults(p)
		c.save(ctx, key, sourceNetwork, p)
		return *p, nil
	})
	if err != nil {
		return nil, err
	}
	p := v.(models.AgentProfile)
	return &p, nil
}

// PutConfig replaces the cached profile, as when the agent edits it in place
func (c *RateCache) PutConfig(ctx context.Context, agentID string, profile models.AgentProfile) (*models.AgentProfile, error) {
	c.withDefaults(&profile)
	data, err := json.Marshal(profile)
	if err != nil {
		return nil, err
	}
	if err := c.put(ctx, ConfigKey(agentID), entry{FetchedAt: c.now().UnixMilli(), Source: sourceEdit, Data: data}); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Rates returns the agent's rate tables, refetching from sourceURL once the
// cached copy is older than the freshness window.
func (c *RateCache) Rates(ctx context.Context, sourceURL, agentID string) (*Rates, error) {
	key := RatesKey(agentID)

	if e, ok := c.load(ctx, key); ok {
		fetchedAt := time.UnixMilli(e.FetchedAt)
		if c.now().Sub(fetchedAt) < c.ratesTTL {
			if tables, err := models.ParseRateTable(e.Data); err == nil {
				return &Rates{Tables: tables, FetchedAt: fetchedAt, FromCache: true}, nil
			}
			c.logger.Warn("Discarding unreadable cached rates", zap.String("key", key))
		} else {
			c.logger.Debug("Cached rates expired", zap.String("key", key), zap.Time("fetched_at", fetchedAt))
		}
	}

	v, err := c.fetch(ctx, key, func(ctx context.Context) (any, error) {
		raw, err := c.client.FetchRates(ctx, sourceURL)
		if err != nil {
			return nil, err
		}
		tables, err := models.ParseRateTable(raw)
		if err != nil {
			return nil, fmt.Errorf("error parsing rates: %w", err)
		}
		fetchedAt := c.now()
		if err := c.put(ctx, key, entry{FetchedAt: fetchedAt.UnixMilli(), Source: sourceNetwork, Data: raw}); err != nil {
			c.logger.Warn("Could not cache rates", zap.String("key", key), zap.Error(err))
		}
		return &Rates{Tables: tables, FetchedAt: fetchedAt}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Rates), nil
}

// Benefits returns the hibah benefit catalog. A payload without a hibah
// section yields an empty catalog and is not cached.
func (c *RateCache) Benefits(ctx context.Context) (models.BenefitCatalog, error) {
	if e, ok := c.load(ctx, BenefitsKey); ok {
		var catalog models.BenefitCatalog
		if err := json.Unmarshal(e.Data, &catalog); err == nil && catalog != nil {
			return catalog, nil
		}
		c.logger.Warn("Discarding unreadable cached benefits", zap.String("key", BenefitsKey))
	}

	v, err := c.fetch(ctx, BenefitsKey, func(ctx context.Context) (any, error) {
		catalog, ok, err := c.client.FetchBenefits(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			c.save(ctx, BenefitsKey, sourceNetwork, catalog)
		}
		return catalog, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(models.BenefitCatalog), nil
}

// InvalidateAgent drops the agent's profile and rate tables
func (c *RateCache) InvalidateAgent(ctx context.Context, agentID string) error {
	return c.store.Delete(ctx, ConfigKey(agentID), RatesKey(agentID))
}

// InvalidateBenefits drops the benefit catalog
func (c *RateCache) InvalidateBenefits(ctx context.Context) error {
	return c.store.Delete(ctx, BenefitsKey)
}

func (c *RateCache) withDefaults(p *models.AgentProfile) {
	if p.LeadsURL == "" {
		p.LeadsURL = c.defaultLeadsURL
	}
}

// fetch runs fn once per key across concurrent callers. The shared call is
// detached from the first caller's cancellation; each caller still stops
// waiting when its own context ends.
func (c *RateCache) fetch(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("Shared in-flight fetch", zap.String("key", key))
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load treats a missing, unreadable or failing entry the same way: absent
func (c *RateCache) load(ctx context.Context, key string) (entry, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return entry{}, false
	}
	if !ok {
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil || len(e.Data) == 0 || string(e.Data) == "null" {
		c.logger.Warn("Discarding malformed cache entry", zap.String("key", key))
		return entry{}, false
	}
	return e, true
}

func (c *RateCache) save(ctx context.Context, key, source string, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		err = c.put(ctx, key, entry{FetchedAt: c.now().UnixMilli(), Source: source, Data: data})
	}
	if err != nil {
		c.logger.Warn("Could not write cache entry", zap.String("key", key), zap.Error(err))
	}
}

func (c *RateCache) put(ctx context.Context, key string, e entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}
