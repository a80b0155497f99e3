package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/algocart/escrowd/internal/blocklist"
	"github.com/algocart/escrowd/internal/logging"
	"github.com/algocart/escrowd/internal/order"
	"github.com/algocart/escrowd/internal/pagination"
	"github.com/algocart/escrowd/internal/validation"
)

// Handler provides HTTP endpoints for operator overrides.
type Handler struct {
	gateway *Gateway
}

// NewHandler creates a new admin handler.
func NewHandler(gateway *Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// RegisterRoutes sets up admin routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/admin/validate", h.Validate)
	r.POST("/admin/orders/:id/release", h.ForceRelease)
	r.POST("/admin/orders/:id/resolve", h.ResolveDispute)
	r.GET("/admin/blocked-users", h.ListBlockedUsers)
	r.POST("/admin/blocked-users", h.BlockUser)
	r.DELETE("/admin/blocked-users/:address", h.UnblockUser)
	r.GET("/admin/audit", h.QueryAudit)
}

// secret pulls the admin credential from the request: the X-Admin-Key
// header, or an adminKey body field already bound by the caller.
func secret(c *gin.Context, bodyKey string) string {
	if k := c.GetHeader("X-Admin-Key"); k != "" {
		return k
	}
	return bodyKey
}

// reqCtx carries the client IP into the gateway so audit entries
// record where an override came from.
func reqCtx(c *gin.Context) context.Context {
	return logging.WithClientIP(c.Request.Context(), c.ClientIP())
}

// Validate handles POST /v1/admin/validate
func (h *Handler) Validate(c *gin.Context) {
	var req struct {
		AdminKey string `json:"adminKey"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.gateway.Authenticate(secret(c, req.AdminKey)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// ForceRelease handles POST /v1/admin/orders/:id/release
func (h *Handler) ForceRelease(c *gin.Context) {
	var req struct {
		AdminKey string `json:"adminKey"`
		Note     string `json:"note"`
	}
	_ = c.ShouldBindJSON(&req)

	o, err := h.gateway.ForceRelease(reqCtx(c), secret(c, req.AdminKey), c.Param("id"), req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// ResolveDispute handles POST /v1/admin/orders/:id/resolve
func (h *Handler) ResolveDispute(c *gin.Context) {
	var req struct {
		AdminKey   string `json:"adminKey"`
		Resolution string `json:"resolution" binding:"required"`
		Note       string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	o, err := h.gateway.ResolveDispute(reqCtx(c), secret(c, req.AdminKey), c.Param("id"), req.Resolution, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// ListBlockedUsers handles GET /v1/admin/blocked-users
func (h *Handler) ListBlockedUsers(c *gin.Context) {
	params := pagination.Parse(c.Query("limit"), c.Query("offset"))

	users, total, err := h.gateway.ListBlockedUsers(reqCtx(c), secret(c, ""), params.Limit, params.Offset)
	if err != nil {
		writeError(c, err)
		return
	}
	if users == nil {
		users = []*blocklist.BlockedUser{}
	}
	c.JSON(http.StatusOK, gin.H{
		"blockedUsers": users,
		"total":        total,
		"limit":        params.Limit,
		"offset":       params.Offset,
	})
}

// BlockUser handles POST /v1/admin/blocked-users
func (h *Handler) BlockUser(c *gin.Context) {
	var req struct {
		AdminKey      string `json:"adminKey"`
		WalletAddress string `json:"walletAddress" binding:"required"`
		Reason        string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	u, err := h.gateway.BlockUser(reqCtx(c), secret(c, req.AdminKey), req.WalletAddress, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"blockedUser": u})
}

// UnblockUser handles DELETE /v1/admin/blocked-users/:address
func (h *Handler) UnblockUser(c *gin.Context) {
	if err := h.gateway.UnblockUser(reqCtx(c), secret(c, ""), c.Param("address")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unblocked": true})
}

// QueryAudit handles GET /v1/admin/audit
func (h *Handler) QueryAudit(c *gin.Context) {
	params := pagination.Parse(c.Query("limit"), "")

	entries, err := h.gateway.QueryAudit(reqCtx(c), secret(c, ""), c.Query("orderId"), params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []*AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// writeError maps gateway errors to HTTP responses. Credential
// failures take priority so probing with a bad key leaks nothing.
func writeError(c *gin.Context, err error) {
	var verrs validation.ValidationErrors
	switch {
	case errors.Is(err, ErrInvalidCredential):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "invalid_credential",
			"message": "Invalid admin credential",
		})
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": verrs.Error(),
			"details": verrs,
		})
	case errors.Is(err, order.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Order not found",
		})
	case errors.Is(err, order.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_transition",
			"message": "Order is not in a valid status for this operation",
		})
	case errors.Is(err, order.ErrInvalidResolution):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_resolution",
			"message": "Resolution must be COMPLETED or REFUND",
		})
	case errors.Is(err, order.ErrReleaseFailed):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "release_failed",
			"message": "Escrow release failed, order state unchanged",
		})
	case errors.Is(err, blocklist.ErrAlreadyBlocked):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "already_blocked",
			"message": "Wallet address is already blocked",
		})
	case errors.Is(err, blocklist.ErrNotBlocked):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_blocked",
			"message": "Wallet address is not blocked",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Internal server error",
		})
	}
}
