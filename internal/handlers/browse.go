package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/requestdata"
	"github.com/couponloop/exchange-backend/internal/services"
)

type BrowseHandler struct {
	log           *logger.Logger
	browseService services.BrowseService
}

func NewBrowseHandler(log *logger.Logger, browseService services.BrowseService) *BrowseHandler {
	return &BrowseHandler{
		log:           log.With("handler", "BrowseHandler"),
		browseService: browseService,
	}
}

func (h *BrowseHandler) BrowseOpenListings(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WalletAddress == "" {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := services.BrowseFilter{
		Text:              c.Query("q"),
		MatchesMyHoldings: c.Query("matches_my_holdings") == "true",
	}
	items, totalPages, err := h.browseService.BrowseOpenListings(c.Request.Context(), rd.WalletAddress, filter, page, pageSize)
	if err != nil {
		h.log.Error("BrowseOpenListings failed", "error", err, "wallet", rd.WalletAddress)
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": items, "total_pages": totalPages, "page": page})
}

func (h *BrowseHandler) ListMyListings(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WalletAddress == "" {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	items, err := h.browseService.ListMyListings(c.Request.Context(), rd.WalletAddress)
	if err != nil {
		h.log.Error("ListMyListings failed", "error", err, "wallet", rd.WalletAddress)
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": items})
}

func (h *BrowseHandler) ListMyHoldings(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.WalletAddress == "" {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	items, err := h.browseService.ListMyHoldings(c.Request.Context(), rd.WalletAddress)
	if err != nil {
		h.log.Error("ListMyHoldings failed", "error", err, "wallet", rd.WalletAddress)
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": items})
}
