package cleanup

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/reclaim/internal/auth"
	"github.com/mbd888/reclaim/internal/validation"
)

// Handler provides HTTP endpoints for the cleanup registry.
type Handler struct {
	service *Service
}

// NewHandler creates a new cleanup handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public (read-only) cleanup routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/cleanup/stats", h.Stats)
	r.GET("/cleanup/:address", validation.AddressParamMiddleware(), h.GetCleanupInfo)
	r.GET("/accounts/:address", validation.AddressParamMiddleware(), h.GetAccount)
}

// RegisterProtectedRoutes sets up auth-required cleanup routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/accounts/data", h.WriteAccountData)
	r.POST("/cleanup/mark", h.Mark)
	r.POST("/cleanup/cancel", h.Cancel)
	r.POST("/cleanup/confirm", h.Confirm)
}

// RegisterOwnerRoutes sets up owner-only cleanup routes.
func (h *Handler) RegisterOwnerRoutes(r *gin.RouterGroup) {
	r.POST("/cleanup/force", h.AdminForce)
}

// WriteAccountData handles POST /v1/accounts/data
func (h *Handler) WriteAccountData(c *gin.Context) {
	var req WriteDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	rec, err := h.service.WriteAccountData(c.Request.Context(), auth.Caller(c), req.Payload)
	if err != nil {
		if errors.Is(err, ErrPayloadTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload_too_large", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": rec})
}

// Mark handles POST /v1/cleanup/mark
func (h *Handler) Mark(c *gin.Context) {
	var req MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if len(req.ConfirmationCode) > validation.MaxCodeLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Confirmation code too long",
		})
		return
	}

	m, err := h.service.Mark(c.Request.Context(), auth.Caller(c), req.Account, req.ConfirmationCode)
	if err != nil {
		respondCleanupError(c, err, "mark_failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"account":  m.Account,
		"markedBy": m.MarkedBy,
		"markedAt": m.MarkedAt,
	})
}

// Cancel handles POST /v1/cleanup/cancel
func (h *Handler) Cancel(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.service.Cancel(c.Request.Context(), auth.Caller(c), req.Account); err != nil {
		respondCleanupError(c, err, "cancel_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": req.Account})
}

// Confirm handles POST /v1/cleanup/confirm
func (h *Handler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.service.Confirm(c.Request.Context(), auth.Caller(c), req.Account, req.ConfirmationCode); err != nil {
		respondCleanupError(c, err, "confirm_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": req.Account})
}

// AdminForce handles POST /v1/cleanup/force
func (h *Handler) AdminForce(c *gin.Context) {
	var req ForceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.service.AdminForce(c.Request.Context(), auth.Caller(c), req.Account); err != nil {
		respondCleanupError(c, err, "force_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": req.Account})
}

// GetCleanupInfo handles GET /v1/cleanup/:address
func (h *Handler) GetCleanupInfo(c *gin.Context) {
	account := c.Param("address")

	m, err := h.service.GetMark(c.Request.Context(), account)
	if err != nil {
		if errors.Is(err, ErrNotMarked) {
			c.JSON(http.StatusOK, gin.H{"account": account, "marked": false})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	resp := gin.H{
		"account":  m.Account,
		"marked":   true,
		"markedBy": m.MarkedBy,
		"markedAt": m.MarkedAt,
	}
	// The stored code is visible only to the account, the marker, or the owner.
	if h.service.CanView(auth.Caller(c), m) {
		resp["confirmationCode"] = m.ConfirmationCode
	}
	c.JSON(http.StatusOK, resp)
}

// GetAccount handles GET /v1/accounts/:address
func (h *Handler) GetAccount(c *gin.Context) {
	rec, err := h.service.GetAccount(c.Request.Context(), c.Param("address"))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": rec})
}

// Stats handles GET /v1/cleanup/stats
func (h *Handler) Stats(c *gin.Context) {
	n, err := h.service.ActiveMarkCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"activeMarks": n})
}

func respondCleanupError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	code := fallback
	switch {
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
		code = "unauthorized"
	case errors.Is(err, ErrAccountNotFound):
		status = http.StatusNotFound
		code = "account_not_found"
	case errors.Is(err, ErrAlreadyMarked):
		status = http.StatusConflict
		code = "already_marked"
	case errors.Is(err, ErrNotMarked):
		status = http.StatusConflict
		code = "not_marked"
	case errors.Is(err, ErrConfirmationMismatch):
		status = http.StatusConflict
		code = "confirmation_mismatch"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
