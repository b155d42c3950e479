package main

import (
	"net/http"

	"go.uber.org/zap"

	"getquote/pkg/cache"
	"getquote/pkg/clients/appscript"
	"getquote/pkg/clients/leadstore"
	"getquote/pkg/clients/shortio"
	"getquote/pkg/config"
	"getquote/pkg/services"
)

// app holds the wired components shared by every command
type app struct {
	store      cache.Store
	rates      *cache.RateCache
	dispatcher *services.LeadDispatcher
	quoter     *services.QuotationService
	logger     *zap.Logger
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := cache.Open(cfg.CacheDriver, cfg.CachePath)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	scripts := appscript.NewClient(httpClient, cfg.ConfigAPIURL, cfg.BenefitsAPIURL, logger.Named("appscript"))
	rates := cache.NewRateCache(store, scripts, cache.Options{
		RatesTTL:        cfg.RatesTTL,
		DefaultLeadsURL: cfg.DefaultLeadsURL,
	}, logger.Named("cache"))

	leads := leadstore.NewClient(httpClient, logger.Named("leadstore"))
	dispatcher := services.NewLeadDispatcher(leads, cfg.DefaultLeadsURL, cfg.HTTPTimeout, logger.Named("dispatcher"))

	var shortener shortio.Client
	if cfg.ShortLinksEnabled() {
		shortener = shortio.NewClient(httpClient, cfg.ShortIOAPIKey, cfg.ShortIODomain, logger.Named("shortio"))
	}
	handoff := services.NewHandoffBuilder(cfg.DefaultWhatsApp, shortener, logger.Named("handoff")).
		WithShortenTimeout(cfg.ShortenTimeout)

	quoter := services.NewQuotationService(rates, dispatcher, leads, handoff, services.ServiceOptions{
		CalcDelay: cfg.CalcDelay,
	}, logger.Named("quotation"))

	return &app{
		store:      store,
		rates:      rates,
		dispatcher: dispatcher,
		quoter:     quoter,
		logger:     logger,
	}, nil
}

// close waits for pending lead submissions before releasing the store
func (a *app) close() {
	a.dispatcher.Wait()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Error closing cache store", zap.Error(err))
	}
}
