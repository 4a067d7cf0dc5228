package app

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"nft_marketplace/api"
	"nft_marketplace/internal/config"
	"nft_marketplace/internal/ledger"
	"nft_marketplace/internal/sales"
	"nft_marketplace/internal/tokens"
)

// DemoTokens are the contracts deployed next to the marketplace when
// config.DemoTokens is set.
type DemoTokens struct {
	Coins      *tokens.ERC20
	MultiToken *tokens.ERC1155
	NFT        *tokens.ERC721
}

// App wires a ledger, the marketplace and its HTTP surface.
type App struct {
	Ledger   *ledger.Ledger
	Sales    *sales.Service
	Tokens   *DemoTokens
	Registry *prometheus.Registry

	logger  *zap.Logger
	closers []func() error
}

// New builds the application described by cfg.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{
		Ledger:   ledger.New(logger),
		Registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	var storage sales.Storage
	switch cfg.Storage.Backend {
	case config.BackendBolt:
		bolt, err := sales.OpenBoltStorage(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bolt.Close)
		storage = bolt
	default:
		storage = sales.NewLocalStorage()
	}

	metrics, err := sales.NewMetrics(a.Registry)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	deployer := cfg.DeployerAddress()
	if cfg.DemoTokens {
		a.Tokens = deployDemoTokens(a.Ledger, deployer)
	}
	a.Sales = sales.NewService(storage, a.Ledger, deployer, logger, metrics)

	logger.Info("marketplace ready",
		zap.Stringer("marketplace", a.Sales.Address()),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("demo_tokens", cfg.DemoTokens),
	)
	return a, nil
}

// deployDemoTokens deploys the payment token, multi token and NFT the
// marketplace scenarios are run against.
func deployDemoTokens(l *ledger.Ledger, deployer common.Address) *DemoTokens {
	_, coins := l.Deploy(deployer, func(addr common.Address) ledger.Contract {
		return tokens.NewERC20(addr, "Coins", "COINS")
	})
	_, multi := l.Deploy(deployer, func(addr common.Address) ledger.Contract {
		return tokens.NewERC1155(addr, "")
	})
	_, nft := l.Deploy(deployer, func(addr common.Address) ledger.Contract {
		return tokens.NewERC721(addr, "MyNFT", "MNFT")
	})
	return &DemoTokens{
		Coins:      coins.(*tokens.ERC20),
		MultiToken: multi.(*tokens.ERC1155),
		NFT:        nft.(*tokens.ERC721),
	}
}

// Handler returns a gin engine serving every route.
func (a *App) Handler() *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery())
	api.InitRoutes(e, api.Dependencies{
		Sales:    a.Sales,
		Ledger:   a.Ledger,
		Logger:   a.logger,
		Gatherer: a.Registry,
	})
	return e
}

// Close releases storage handles.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
