package order

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/algocart/escrowd/internal/pagination"
	"github.com/algocart/escrowd/internal/validation"
)

// FundingVerifier checks a funding transaction against the chain
// after the optimistic FUNDED flip. Implemented by the reconcile
// package; nil disables verification.
type FundingVerifier interface {
	// VerifySync blocks until the transaction confirms or the order
	// is reverted.
	VerifySync(ctx context.Context, orderID, txID string) error
	// VerifyAsync verifies in the background, detached from the
	// request.
	VerifyAsync(orderID, txID string)
}

// Handler provides HTTP endpoints for order operations.
type Handler struct {
	service  *Service
	verifier FundingVerifier
}

// NewHandler creates a new order handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// WithVerifier adds chain verification to the fund endpoint.
func (h *Handler) WithVerifier(v FundingVerifier) *Handler {
	h.verifier = v
	return h
}

// RegisterRoutes sets up order routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/:id", h.GetOrder)
	r.GET("/orders/:id/funding", h.GetFundingInfo)
	r.PUT("/orders/:id/buyer", h.UpdateBuyer)
	r.POST("/orders/:id/fund", h.FundOrder)
	r.POST("/orders/:id/deliver", h.DeliverOrder)
	r.POST("/orders/:id/confirm", h.ConfirmOrder)
	r.POST("/orders/:id/dispute", h.DisputeOrder)
	r.POST("/orders/:id/cancel", h.CancelOrder)
}

// CreateOrder handles POST /v1/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	o, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": o})
}

// GetOrder handles GET /v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// ListOrders handles GET /v1/orders
func (h *Handler) ListOrders(c *gin.Context) {
	params := pagination.Parse(c.Query("limit"), c.Query("offset"))
	filter := ListFilter{
		Status: Status(c.Query("status")),
		Wallet: c.Query("wallet"),
	}

	orders, total, err := h.service.List(c.Request.Context(), filter, params.Limit, params.Offset)
	if err != nil {
		writeError(c, err)
		return
	}
	if orders == nil {
		orders = []*EscrowOrder{}
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}

// GetFundingInfo handles GET /v1/orders/:id/funding
func (h *Handler) GetFundingInfo(c *gin.Context) {
	o, err := h.service.FundingInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderId":       o.ID,
		"escrowAddress": o.EscrowAddress,
		"appId":         o.AppID,
		"amount":        o.Amount,
		"status":        o.Status,
	})
}

// UpdateBuyer handles PUT /v1/orders/:id/buyer
func (h *Handler) UpdateBuyer(c *gin.Context) {
	var req BuyerDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	o, err := h.service.AttachBuyer(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// FundRequest is the body of the fund endpoint. Wait selects
// synchronous verification: the response arrives only after the
// transaction confirms or the order is reverted.
type FundRequest struct {
	Buyer string `json:"buyer" binding:"required"`
	TxID  string `json:"txId" binding:"required"`
	Wait  bool   `json:"wait"`
}

// FundOrder handles POST /v1/orders/:id/fund
func (h *Handler) FundOrder(c *gin.Context) {
	var req FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	id := c.Param("id")

	o, err := h.service.Fund(c.Request.Context(), id, req.Buyer, req.TxID)
	if err != nil {
		writeError(c, err)
		return
	}

	if h.verifier != nil {
		if req.Wait {
			if err := h.verifier.VerifySync(c.Request.Context(), id, req.TxID); err != nil {
				reverted, getErr := h.service.Get(c.Request.Context(), id)
				if getErr != nil {
					reverted = o
				}
				c.JSON(http.StatusConflict, gin.H{
					"error":   "reconciliation_failed",
					"message": err.Error(),
					"order":   reverted,
				})
				return
			}
		} else {
			h.verifier.VerifyAsync(id, req.TxID)
		}
	}

	c.JSON(http.StatusOK, gin.H{"order": o})
}

// DeliverOrder handles POST /v1/orders/:id/deliver
func (h *Handler) DeliverOrder(c *gin.Context) {
	var req struct {
		Seller string `json:"seller" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	o, err := h.service.MarkDelivered(c.Request.Context(), c.Param("id"), req.Seller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// ConfirmOrder handles POST /v1/orders/:id/confirm
func (h *Handler) ConfirmOrder(c *gin.Context) {
	var req struct {
		Buyer       string `json:"buyer" binding:"required"`
		ReleaseTxID string `json:"releaseTxId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	o, err := h.service.Confirm(c.Request.Context(), c.Param("id"), req.Buyer, req.ReleaseTxID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// DisputeOrder handles POST /v1/orders/:id/dispute
func (h *Handler) DisputeOrder(c *gin.Context) {
	var req struct {
		Wallet string `json:"wallet" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	o, err := h.service.Dispute(c.Request.Context(), c.Param("id"), req.Wallet)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// CancelOrder handles POST /v1/orders/:id/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	var req struct {
		Wallet string `json:"wallet" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	o, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req.Wallet)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": msg,
	})
}

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var verrs validation.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": verrs.Error(),
			"details": verrs,
		})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Order not found",
		})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_transition",
			"message": "Order is not in a valid status for this operation",
		})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "unauthorized",
			"message": "Not authorized for this order operation",
		})
	case errors.Is(err, ErrBlocked):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "blocked",
			"message": "Wallet address is blocked from trading",
		})
	case errors.Is(err, ErrInvalidResolution):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_resolution",
			"message": "Resolution must be COMPLETED or REFUND",
		})
	case errors.Is(err, ErrReleaseFailed):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "release_failed",
			"message": "Escrow release failed, order state unchanged",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Internal server error",
		})
	}
}
