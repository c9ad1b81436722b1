package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/application/rampservice"
	"github.com/radlabs/rampd/internal/domain"
)

type RampHandler struct {
	rampSvc rampservice.IRampService
	logger  zerolog.Logger
}

func NewRampHandler(rampSvc rampservice.IRampService, logger zerolog.Logger) *RampHandler {
	return &RampHandler{
		rampSvc: rampSvc,
		logger:  logger.With().Str("component", "ramp_handler").Logger(),
	}
}

type quoteRequest struct {
	USD string `json:"usd" binding:"required"`
}

// Quote returns a live conversion snapshot without any side effects.
func (h *RampHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "usd is required"})
		return
	}

	quote, err := h.rampSvc.Quote(c.Request.Context(), req.USD)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// CreatePaymentOrder starts a sandbox checkout order and returns its
// approval link.
func (h *RampHandler) CreatePaymentOrder(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "usd is required"})
		return
	}

	order, err := h.rampSvc.CreatePaymentOrder(c.Request.Context(), req.USD)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// FiatToUSDC runs the full conversion and transfer.
func (h *RampHandler) FiatToUSDC(c *gin.Context) {
	var req domain.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.rampSvc.MintAndTransfer(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error().Err(err).Str("usd", req.USD).Msg("Mint and transfer failed")
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// History lists an address's confirmed asset transfers, newest first.
func (h *RampHandler) History(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address query parameter is required"})
		return
	}

	history, err := h.rampSvc.History(c.Request.Context(), address)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address":   address,
		"transfers": history,
	})
}

func (h *RampHandler) ReceiptByID(c *gin.Context) {
	rec, err := h.rampSvc.ReceiptByID(c.Request.Context(), c.Param("txid"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *RampHandler) ReceiptByDigest(c *gin.Context) {
	rec, err := h.rampSvc.ReceiptByDigest(c.Request.Context(), c.Param("digest"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// respondError maps the error taxonomy onto HTTP status codes.
func (h *RampHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUpstreamExchange), errors.Is(err, domain.ErrUpstreamPayment):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConfirmationTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrOptIn),
		errors.Is(err, domain.ErrAssetProvisioning),
		errors.Is(err, domain.ErrSubmissionRejected):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
