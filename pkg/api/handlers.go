package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"getquote/pkg/clients/leadstore"
	"getquote/pkg/middleware"
	"getquote/pkg/models"
	"getquote/pkg/services"
	"getquote/pkg/utils"
)

// Quoter is the quotation flow the handlers drive
type Quoter interface {
	Open(ctx context.Context, agentID string, opts ...services.OpenOption) (*services.Session, error)
	Quote(ctx context.Context, session *services.Session, inputs models.CustomerInputs) (*services.QuoteResult, error)
	UpdateProfile(ctx context.Context, agentID string, profile models.AgentProfile) (*models.AgentProfile, error)
	UpdateLeadsURL(ctx context.Context, agentID, leadsURL string) (*models.AgentProfile, error)
	Leads(ctx context.Context, agentID string) ([]models.LeadRecord, error)
}

// CacheAdmin drops cached entries on request
type CacheAdmin interface {
	InvalidateAgent(ctx context.Context, agentID string) error
	InvalidateBenefits(ctx context.Context) error
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	quoter         Quoter
	cache          CacheAdmin
	defaultAgentID string
	logger         *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(quoter Quoter, cache CacheAdmin, defaultAgentID string, logger *zap.Logger) *Handlers {
	return &Handlers{
		quoter:         quoter,
		cache:          cache,
		defaultAgentID: defaultAgentID,
		logger:         logger,
	}
}

// NewRouter registers every route on a fresh engine
func NewRouter(h *Handlers, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(logger), middleware.CORS())

	router.GET("/health", h.HealthCheck)
	router.GET("/resolve", h.ResolveAgent)
	router.DELETE("/cache/benefits", h.ClearBenefits)

	agents := router.Group("/agents/:id")
	agents.GET("", h.GetAgent)
	agents.PUT("", h.UpdateAgent)
	agents.POST("/quote", h.CreateQuote)
	agents.GET("/leads", h.ListLeads)
	agents.PUT("/leads-url", h.UpdateLeadsURL)
	agents.DELETE("/cache", h.ClearAgentCache)
	return router
}

// HealthCheck handler for monitoring
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ResolveAgent maps a hosted page URL onto the agent id it serves
func (h *Handlers) ResolveAgent(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"agentId": utils.AgentIDFromString(c.Query("url"), h.defaultAgentID),
	})
}

// GetAgent opens a session: profile, theme and benefit catalog
func (h *Handlers) GetAgent(c *gin.Context) {
	session, err := h.quoter.Open(c.Request.Context(), agentID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	primary, secondary := session.Profile.Theme()
	c.JSON(http.StatusOK, gin.H{
		"agentId":  session.AgentID,
		"profile":  session.Profile,
		"benefits": session.Benefits,
		"theme": gin.H{
			"primaryColor":   primary,
			"secondaryColor": secondary,
		},
	})
}

// UpdateAgent replaces the cached profile with the edited one
func (h *Handlers) UpdateAgent(c *gin.Context) {
	var profile models.AgentProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format"})
		return
	}
	updated, err := h.quoter.UpdateProfile(c.Request.Context(), agentID(c), profile)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// CreateQuote prices a submitted form and records the lead
func (h *Handlers) CreateQuote(c *gin.Context) {
	var inputs models.CustomerInputs
	if err := c.ShouldBindJSON(&inputs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format"})
		return
	}

	ctx := c.Request.Context()
	// Quote fetches the rates itself
	session, err := h.quoter.Open(ctx, agentID(c), services.WithoutRatePrefetch())
	if err != nil {
		h.writeError(c, err)
		return
	}
	result, err := h.quoter.Quote(ctx, session, inputs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListLeads returns the agent's captured leads, newest first
func (h *Handlers) ListLeads(c *gin.Context) {
	records, err := h.quoter.Leads(c.Request.Context(), agentID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"leads": records,
		"count": len(records),
	})
}

// UpdateLeadsURL points the agent's leads at another sheet
func (h *Handlers) UpdateLeadsURL(c *gin.Context) {
	var body struct {
		LeadsURL string `json:"leadsUrl"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format"})
		return
	}
	updated, err := h.quoter.UpdateLeadsURL(c.Request.Context(), agentID(c), body.LeadsURL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ClearAgentCache forgets the agent's profile and rate tables
func (h *Handlers) ClearAgentCache(c *gin.Context) {
	if err := h.cache.InvalidateAgent(c.Request.Context(), agentID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearBenefits forgets the benefit catalog
func (h *Handlers) ClearBenefits(c *gin.Context) {
	if err := h.cache.InvalidateBenefits(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func agentID(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Param("id")))
}

// writeError maps service errors onto status codes. Form and rate errors
// carry a message the page can show inline.
func (h *Handlers) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var lsErr *leadstore.Error
	switch {
	case errors.As(err, &lsErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": string(lsErr.Kind), "hint": lsErr.Hint})
	case errors.Is(err, services.ErrIncompleteForm):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": services.ErrIncompleteForm.Error(), "detail": err.Error()})
	case errors.Is(err, services.ErrAgeOutOfRange):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": services.ErrAgeOutOfRange.Error()})
	case errors.Is(err, services.ErrInvalidLeadsURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrRatesUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": services.ErrRatesUnavailable.Error(), "retry": true})
	case errors.Is(err, services.ErrInitialization):
		c.JSON(http.StatusBadGateway, gin.H{"error": services.ErrInitialization.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		h.logger.Error("Unhandled request error", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
