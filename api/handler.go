package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nft_marketplace/internal/sales"
)

// salesHandler holds the sales service and implements HTTP handlers for sales operations.
type salesHandler struct {
	salesService *sales.Service
	logger       *zap.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		salesService: salesService,
		logger:       logger,
	}
}

type createSale1155Request struct {
	Asset        string `json:"asset" binding:"required"`
	TokenID      string `json:"token_id" binding:"required"`
	Quantity     string `json:"quantity" binding:"required"`
	Price        string `json:"price" binding:"required"`
	PaymentToken string `json:"payment_token" binding:"required"`
}

type createSale721Request struct {
	Asset        string `json:"asset" binding:"required"`
	TokenID      string `json:"token_id" binding:"required"`
	Price        string `json:"price" binding:"required"`
	PaymentToken string `json:"payment_token" binding:"required"`
}

type buySaleRequest struct {
	Asset    string `json:"asset" binding:"required"`
	TokenID  string `json:"token_id" binding:"required"`
	Quantity string `json:"quantity"`
}

// handleCreateSale1155 handles the POST /sales/erc1155 endpoint.
func (h *salesHandler) handleCreateSale1155(ctx *gin.Context) {
	var req createSale1155Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	paymentToken, err := parseAddress("payment_token", req.PaymentToken)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	tokenID, err := parseAmount("token_id", req.TokenID)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	quantity, err := parseAmount("quantity", req.Quantity)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	sale, err := h.salesService.CreateSaleMultiQuantity(ctx.Request.Context(), callerOf(ctx), asset, tokenID, quantity, price, paymentToken)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, sale)
}

// handleCreateSale721 handles the POST /sales/erc721 endpoint.
func (h *salesHandler) handleCreateSale721(ctx *gin.Context) {
	var req createSale721Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	paymentToken, err := parseAddress("payment_token", req.PaymentToken)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	tokenID, err := parseAmount("token_id", req.TokenID)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	sale, err := h.salesService.CreateSaleUniqueAsset(ctx.Request.Context(), callerOf(ctx), asset, tokenID, price, paymentToken)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, sale)
}

// handleBuySale1155 handles the POST /sales/erc1155/buy endpoint.
func (h *salesHandler) handleBuySale1155(ctx *gin.Context) {
	var req buySaleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	tokenID, err := parseAmount("token_id", req.TokenID)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	quantity, err := parseAmount("quantity", req.Quantity)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	purchase, err := h.salesService.BuySaleMultiQuantity(ctx.Request.Context(), callerOf(ctx), asset, tokenID, quantity)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, purchase)
}

// handleBuySale721 handles the POST /sales/erc721/buy endpoint.
func (h *salesHandler) handleBuySale721(ctx *gin.Context) {
	var req buySaleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	tokenID, err := parseAmount("token_id", req.TokenID)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	purchase, err := h.salesService.BuySaleUniqueAsset(ctx.Request.Context(), callerOf(ctx), asset, tokenID)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, purchase)
}

// handleGetSale handles GET /sales/:asset/:tokenId.
func (h *salesHandler) handleGetSale(ctx *gin.Context) {
	asset, err := parseAddress("asset", ctx.Param("asset"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	tokenID, err := parseAmount("tokenId", ctx.Param("tokenId"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	sale, err := h.salesService.GetSale(ctx.Request.Context(), asset, tokenID)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, sale)
}

func (h *salesHandler) handleSearchSales(ctx *gin.Context) {
	filter := sales.SearchFilter{Standard: sales.Standard(ctx.Query("standard"))}
	if raw := ctx.Query("owner"); raw != "" {
		owner, err := parseAddress("owner", raw)
		if err != nil {
			h.writeError(ctx, err)
			return
		}
		filter.Owner = &owner
	}
	if raw := ctx.Query("asset"); raw != "" {
		asset, err := parseAddress("asset", raw)
		if err != nil {
			h.writeError(ctx, err)
			return
		}
		filter.Asset = &asset
	}

	results, metadata, err := h.salesService.SearchSales(ctx.Request.Context(), filter)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": results, "metadata": metadata})
}

// writeError maps registry errors to HTTP statuses. ErrSaleAlreadyActive is
// checked before ErrValidation, which it wraps.
func (h *salesHandler) writeError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, sales.ErrSaleAlreadyActive):
		status = http.StatusConflict
	case errors.Is(err, sales.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, sales.ErrAuthorization):
		status = http.StatusForbidden
	case errors.Is(err, sales.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sales.ErrInsufficientQuantity):
		status = http.StatusConflict
	case errors.Is(err, sales.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("sales request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(status, gin.H{"error": "internal error"})
		return
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}
