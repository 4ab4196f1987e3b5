package treasury

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/reclaim/internal/amount"
	"github.com/mbd888/reclaim/internal/auth"
	"github.com/mbd888/reclaim/internal/pagination"
)

// Handler exposes the treasury over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a treasury HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the public read endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/treasury", h.GetPool)
	r.GET("/treasury/entries", h.ListEntries)
}

// RegisterProtectedRoutes registers endpoints requiring a caller identity.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/treasury/fund", h.Fund)
}

// RegisterOwnerRoutes registers owner-only endpoints.
func (h *Handler) RegisterOwnerRoutes(r *gin.RouterGroup) {
	r.POST("/treasury/withdraw", h.Withdraw)
}

// GetPool returns the pool balance and lifetime totals.
func (h *Handler) GetPool(c *gin.Context) {
	pool, err := h.service.Pool(c.Request.Context())
	if err != nil {
		respondTreasuryError(c, err)
		return
	}
	c.JSON(http.StatusOK, poolResponse(pool))
}

// ListEntries returns recent fund movements, newest first, with cursor
// pagination over the retained window.
func (h *Handler) ListEntries(c *gin.Context) {
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

	entries, err := h.service.Entries(c.Request.Context(), 100)
	if err != nil {
		respondTreasuryError(c, err)
		return
	}

	if cursor != nil {
		var rest []*Entry
		for i, e := range entries {
			if e.ID == cursor.ID {
				rest = entries[i+1:]
				break
			}
			if e.CreatedAt.Before(cursor.CreatedAt) {
				rest = entries[i:]
				break
			}
		}
		entries = rest
	}
	if len(entries) > limit+1 {
		entries = entries[:limit+1]
	}

	page, next, hasMore := pagination.ComputePage(entries, limit, func(e *Entry) (time.Time, string) {
		return e.CreatedAt, e.ID
	})
	out := make([]gin.H, 0, len(page))
	for _, e := range page {
		out = append(out, gin.H{
			"id":        e.ID,
			"kind":      e.Kind,
			"party":     e.Party,
			"amount":    amount.Format(e.Amount),
			"createdAt": e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":    out,
		"count":      len(out),
		"nextCursor": next,
		"hasMore":    hasMore,
	})
}

// Fund credits the pool from the caller.
func (h *Handler) Fund(c *gin.Context) {
	var req FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	amt, ok := amount.Parse(req.Amount)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_amount",
			"message": "amount must be a decimal like 25.00",
		})
		return
	}

	pool, err := h.service.Fund(c.Request.Context(), auth.Caller(c), amt)
	if err != nil {
		respondTreasuryError(c, err)
		return
	}
	c.JSON(http.StatusOK, poolResponse(pool))
}

// Withdraw drains funds to the owner. Owner only.
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	amt, ok := amount.Parse(req.Amount)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_amount",
			"message": "amount must be a decimal like 25.00",
		})
		return
	}

	pool, err := h.service.EmergencyWithdraw(c.Request.Context(), auth.Caller(c), amt)
	if err != nil {
		respondTreasuryError(c, err)
		return
	}
	c.JSON(http.StatusOK, poolResponse(pool))
}

func poolResponse(p *Pool) gin.H {
	return gin.H{
		"balance":   amount.Format(p.Balance),
		"funded":    amount.Format(p.Funded),
		"paid":      amount.Format(p.Paid),
		"updatedAt": p.UpdatedAt,
	}
}

func respondTreasuryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": err.Error()})
	case errors.Is(err, ErrInsufficientFunds):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient_funds", "message": err.Error()})
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "something went wrong"})
	}
}
