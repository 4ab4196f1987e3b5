package claims

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/reclaim/internal/amount"
	"github.com/mbd888/reclaim/internal/auth"
	"github.com/mbd888/reclaim/internal/rewards"
	"github.com/mbd888/reclaim/internal/treasury"
	"github.com/mbd888/reclaim/internal/validation"
)

// Handler exposes claim operations over HTTP.
type Handler struct {
	engine *Engine
}

// NewHandler creates a claims HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterProtectedRoutes registers endpoints requiring a caller identity.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/rewards/claim", h.ClaimRewards)
	r.POST("/rewards/sessions/:id/claim", h.ClaimSession)
}

// RegisterOwnerRoutes registers owner-only endpoints.
func (h *Handler) RegisterOwnerRoutes(r *gin.RouterGroup) {
	r.POST("/rewards/distribute", h.Distribute)
}

// ClaimRewards pays out the caller's whole pending balance.
func (h *Handler) ClaimRewards(c *gin.Context) {
	caller := auth.Caller(c)
	paid, err := h.engine.ClaimRewards(c.Request.Context(), caller)
	if err != nil {
		respondClaimError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"identity": caller,
		"paid":     amount.Format(paid),
	})
}

// ClaimSession pays out one of the caller's sessions.
func (h *Handler) ClaimSession(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "session id must be an integer",
		})
		return
	}
	caller := auth.Caller(c)
	paid, err := h.engine.ClaimSession(c.Request.Context(), caller, id)
	if err != nil {
		respondClaimError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"identity":  caller,
		"sessionId": id,
		"paid":      amount.Format(paid),
	})
}

// DistributeRequest is the owner-only body for paying out a session.
type DistributeRequest struct {
	Target    string `json:"target" binding:"required"`
	SessionID int64  `json:"sessionId" binding:"required"`
}

// Distribute pays out a target's session. Owner only.
func (h *Handler) Distribute(c *gin.Context) {
	var req DistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if !validation.IsValidAddress(req.Target) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "target must be 0x followed by 40 hex characters",
		})
		return
	}
	target := validation.NormalizeAddress(req.Target)

	paid, err := h.engine.Distribute(c.Request.Context(), auth.Caller(c), target, req.SessionID)
	if err != nil {
		respondClaimError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"identity":  target,
		"sessionId": req.SessionID,
		"paid":      amount.Format(paid),
	})
}

func respondClaimError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient_balance", "message": err.Error()})
	case errors.Is(err, treasury.ErrInsufficientFunds):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient_funds", "message": err.Error()})
	case errors.Is(err, rewards.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found", "message": err.Error()})
	case errors.Is(err, rewards.ErrAlreadySettled):
		c.JSON(http.StatusConflict, gin.H{"error": "already_settled", "message": err.Error()})
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "something went wrong"})
	}
}
