package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"getquote/pkg/clients/leadstore"
	"getquote/pkg/models"
	"getquote/pkg/utils"
)

// LeadDispatcher records leads in the background. Lead capture never holds
// up or fails a quote: errors are logged and dropped, and nothing is retried.
type LeadDispatcher struct {
	client             leadstore.Client
	defaultDestination string
	timeout            time.Duration
	logger             *zap.Logger
	wg                 sync.WaitGroup
}

// NewLeadDispatcher creates a dispatcher that falls back to defaultDestination
func NewLeadDispatcher(client leadstore.Client, defaultDestination string, timeout time.Duration, logger *zap.Logger) *LeadDispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &LeadDispatcher{
		client:             client,
		defaultDestination: defaultDestination,
		timeout:            timeout,
		logger:             logger,
	}
}

// Submit starts posting the lead and returns at once with an id for log correlation
func (d *LeadDispatcher) Submit(destination string, lead models.Lead) string {
	if destination == "" {
		destination = d.defaultDestination
	}
	id := uuid.NewString()
	log := d.logger.With(
		zap.String("submission", id),
		zap.String("agent", lead.AgentID),
		zap.String("phone_ref", utils.PhoneRef(lead.Phone)),
	)

	if destination == "" {
		log.Warn("No lead destination configured, dropping lead")
		return id
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("Lead submission panicked", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.client.Submit(ctx, destination, lead); err != nil {
			log.Warn("Lead submission failed", zap.Error(err))
			return
		}
		log.Info("Lead submitted", zap.String("plan", string(lead.PlanType)))
	}()
	return id
}

// Wait blocks until every submission started so far has finished
func (d *LeadDispatcher) Wait() {
	d.wg.Wait()
}
