package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nft_marketplace/internal/ledger"
	"nft_marketplace/internal/sales"
)

// Dependencies are the components the routes serve.
type Dependencies struct {
	Sales    *sales.Service
	Ledger   *ledger.Ledger
	Logger   *zap.Logger
	Gatherer prometheus.Gatherer
}

// InitRoutes registers the marketplace and token endpoints on the given Gin
// engine. Write endpoints act as the address in the X-Caller header.
func InitRoutes(e *gin.Engine, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	e.Use(requestLogger(logger))

	salesHandler := NewSalesHandler(deps.Sales, logger)
	tokenHandler := NewTokenHandler(deps.Ledger, logger)

	e.GET("/sales", salesHandler.handleSearchSales)
	e.GET("/sales/:asset/:tokenId", salesHandler.handleGetSale)
	signed := e.Group("/sales", requireCaller())
	signed.POST("/erc1155", salesHandler.handleCreateSale1155)
	signed.POST("/erc721", salesHandler.handleCreateSale721)
	signed.POST("/erc1155/buy", salesHandler.handleBuySale1155)
	signed.POST("/erc721/buy", salesHandler.handleBuySale721)

	e.GET("/contracts", tokenHandler.handleContracts)
	e.GET("/events", tokenHandler.handleEvents)
	e.GET("/tokens/:address/balance/:owner", tokenHandler.handleBalance)
	e.GET("/tokens/:address/owner/:tokenId", tokenHandler.handleOwnerOf)
	tokenWrites := e.Group("/tokens/:address", requireCaller())
	tokenWrites.POST("/mint", tokenHandler.handleMint)
	tokenWrites.POST("/approve", tokenHandler.handleApprove)
	tokenWrites.POST("/approval-for-all", tokenHandler.handleApprovalForAll)

	if deps.Gatherer != nil {
		e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
