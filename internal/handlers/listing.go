package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/requestdata"
	"github.com/couponloop/exchange-backend/internal/services"
)

type ListingHandler struct {
	log            *logger.Logger
	listingService services.ListingService
}

func NewListingHandler(log *logger.Logger, listingService services.ListingService) *ListingHandler {
	return &ListingHandler{
		log:            log.With("handler", "ListingHandler"),
		listingService: listingService,
	}
}

type createListingRequest struct {
	InstanceID         uuid.UUID   `json:"instance_id" binding:"required"`
	DesiredInstanceIDs []uuid.UUID `json:"desired_instance_ids"`
}

func (h *ListingHandler) CreateListing(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WalletAddress == "" {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	listing, err := h.listingService.CreateListing(c.Request.Context(), rd.WalletAddress, req.InstanceID, req.DesiredInstanceIDs)
	if err != nil {
		h.log.Error("CreateListing failed", "error", err, "instance_id", req.InstanceID, "wallet", rd.WalletAddress)
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"listing": listing})
}

func (h *ListingHandler) CancelListing(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WalletAddress == "" {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	instanceID, err := uuid.Parse(c.Param("instanceId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.listingService.CancelListing(c.Request.Context(), rd.WalletAddress, instanceID); err != nil {
		h.log.Error("CancelListing failed", "error", err, "instance_id", instanceID, "wallet", rd.WalletAddress)
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"cancelled": true})
}
