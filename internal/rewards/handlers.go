package rewards

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/reclaim/internal/amount"
	"github.com/mbd888/reclaim/internal/auth"
	"github.com/mbd888/reclaim/internal/pagination"
	"github.com/mbd888/reclaim/internal/validation"
)

// Handler exposes the reward ledger over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a rewards HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the public read endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/rewards/params", h.GetParams)
	r.GET("/rewards/preview", h.PreviewReward)
	users := r.Group("/rewards/users/:address")
	users.Use(validation.AddressParamMiddleware())
	users.GET("", h.GetUserStats)
	users.GET("/sessions", h.ListUserSessions)
	users.GET("/sessions/:id", h.GetUserSession)
}

// RegisterProtectedRoutes registers endpoints requiring a caller identity.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/rewards/report", h.Report)
}

// RegisterOwnerRoutes registers owner-only endpoints.
func (h *Handler) RegisterOwnerRoutes(r *gin.RouterGroup) {
	r.PUT("/rewards/params", h.UpdateParams)
}

// GetParams returns the current pricing.
func (h *Handler) GetParams(c *gin.Context) {
	p := h.service.Params()
	c.JSON(http.StatusOK, gin.H{
		"rate":            amount.Format(p.RatePerAccount),
		"bonusMultiplier": p.BonusMultiplier,
		"bonusThreshold":  p.BonusThreshold,
		"bonusMode":       p.BonusMode,
	})
}

// PreviewReward prices a hypothetical batch without recording anything.
func (h *Handler) PreviewReward(c *gin.Context) {
	accounts, err := strconv.ParseInt(c.Query("accounts"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "accounts must be a positive integer",
		})
		return
	}

	identity := c.Query("address")
	if identity != "" {
		if !validation.IsValidAddress(identity) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_address",
				"message": "address must be 0x followed by 40 hex characters",
			})
			return
		}
		identity = validation.NormalizeAddress(identity)
	}

	b, err := h.service.Preview(c.Request.Context(), identity, accounts)
	if err != nil {
		respondRewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accounts":     accounts,
		"base":         amount.Format(b.Base),
		"bonus":        amount.Format(b.Bonus),
		"total":        amount.Format(b.Total),
		"bonusApplied": b.BonusApplied,
	})
}

// Report records a batch of cleaned accounts for the caller.
func (h *Handler) Report(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	session, err := h.service.Report(c.Request.Context(), auth.Caller(c), req.Accounts)
	if err != nil {
		respondRewardError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse(session))
}

// GetUserStats returns an identity's cumulative ledger view.
func (h *Handler) GetUserStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondRewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"identity":        stats.Identity,
		"accountsCleaned": stats.AccountsCleaned,
		"sessions":        stats.Sessions,
		"rewardsEarned":   amount.Format(stats.RewardsEarned),
		"pending":         amount.Format(stats.Pending),
		"lastActive":      stats.LastActive,
	})
}

// ListUserSessions lists a reporter's sessions, newest first, with
// cursor pagination.
func (h *Handler) ListUserSessions(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "limit must be between 1 and 100",
			})
			return
		}
		limit = n
	}
	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "invalid cursor",
		})
		return
	}

	sessions, err := h.service.Sessions(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondRewardError(c, err)
		return
	}

	// Sessions are newest first with monotonic ids, so the cursor id
	// marks the last session of the previous page.
	if cursor != nil {
		after, _ := strconv.ParseInt(cursor.ID, 10, 64)
		for i, s := range sessions {
			if s.ID < after {
				sessions = sessions[i:]
				break
			}
			if i == len(sessions)-1 {
				sessions = nil
			}
		}
	}
	if len(sessions) > limit+1 {
		sessions = sessions[:limit+1]
	}

	page, next, hasMore := pagination.ComputePage(sessions, limit, func(s *Session) (time.Time, string) {
		return s.ReportedAt, strconv.FormatInt(s.ID, 10)
	})
	out := make([]gin.H, 0, len(page))
	for _, s := range page {
		out = append(out, sessionResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions":   out,
		"count":      len(out),
		"nextCursor": next,
		"hasMore":    hasMore,
	})
}

// GetUserSession returns one session by id.
func (h *Handler) GetUserSession(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "session id must be an integer",
		})
		return
	}
	session, err := h.service.Session(c.Request.Context(), c.Param("address"), id)
	if err != nil {
		respondRewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

// UpdateParams changes the pricing. Owner only; partial updates allowed.
func (h *Handler) UpdateParams(c *gin.Context) {
	var req UpdateParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	caller := auth.Caller(c)
	ctx := c.Request.Context()

	if req.Rate != "" {
		rate, ok := amount.Parse(req.Rate)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_amount",
				"message": "rate must be a decimal amount like 1.00",
			})
			return
		}
		if err := h.service.UpdateRate(ctx, caller, rate); err != nil {
			respondRewardError(c, err)
			return
		}
	}
	if req.BonusMultiplier != 0 || req.BonusThreshold != 0 {
		p := h.service.Params()
		mult, thresh := req.BonusMultiplier, req.BonusThreshold
		if mult == 0 {
			mult = p.BonusMultiplier
		}
		if thresh == 0 {
			thresh = p.BonusThreshold
		}
		if err := h.service.UpdateBonus(ctx, caller, mult, thresh); err != nil {
			respondRewardError(c, err)
			return
		}
	}

	p := h.service.Params()
	c.JSON(http.StatusOK, gin.H{
		"rate":            amount.Format(p.RatePerAccount),
		"bonusMultiplier": p.BonusMultiplier,
		"bonusThreshold":  p.BonusThreshold,
		"bonusMode":       p.BonusMode,
	})
}

func sessionResponse(s *Session) gin.H {
	return gin.H{
		"reporter":     s.Reporter,
		"sessionId":    s.ID,
		"accounts":     s.Accounts,
		"base":         amount.Format(s.Base),
		"bonus":        amount.Format(s.Bonus),
		"total":        amount.Format(s.Total),
		"bonusApplied": s.BonusApplied,
		"settled":      s.Settled,
		"reportedAt":   s.ReportedAt,
	}
}

func respondRewardError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidMetric):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_metric", "message": err.Error()})
	case errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": err.Error()})
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized", "message": err.Error()})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found", "message": err.Error()})
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found", "message": err.Error()})
	case errors.Is(err, ErrAlreadySettled):
		c.JSON(http.StatusConflict, gin.H{"error": "already_settled", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "something went wrong"})
	}
}
