package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/requestdata"
	"github.com/couponloop/exchange-backend/internal/services"
)

type ExchangeHandler struct {
	log             *logger.Logger
	exchangeService services.ExchangeService
}

func NewExchangeHandler(log *logger.Logger, exchangeService services.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{
		log:             log.With("handler", "ExchangeHandler"),
		exchangeService: exchangeService,
	}
}

type proposeSwapRequest struct {
	TargetListingID   uuid.UUID `json:"target_listing_id" binding:"required"`
	OfferedInstanceID uuid.UUID `json:"offered_instance_id" binding:"required"`
}

func (h *ExchangeHandler) ProposeSwap(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WalletAddress == "" {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req proposeSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	offer, err := h.exchangeService.ProposeSwap(c.Request.Context(), rd.WalletAddress, req.TargetListingID, req.OfferedInstanceID)
	if err != nil {
		h.log.Error("ProposeSwap failed", "error", err, "listing_id", req.TargetListingID, "wallet", rd.WalletAddress)
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"offer": offer})
}

type resolveSwapRequest struct {
	Decision services.SwapDecision `json:"decision" binding:"required"`
}

func (h *ExchangeHandler) ResolveSwap(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WalletAddress == "" {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	offerID, err := uuid.Parse(c.Param("offerId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req resolveSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.exchangeService.ResolveSwap(c.Request.Context(), rd.WalletAddress, offerID, req.Decision); err != nil {
		h.log.Error("ResolveSwap failed", "error", err, "offer_id", offerID, "wallet", rd.WalletAddress)
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"resolved": true, "decision": req.Decision})
}
