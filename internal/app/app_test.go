package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"nft_marketplace/internal/config"
	"nft_marketplace/internal/ledger"
	"nft_marketplace/internal/sales"
)

func TestNewDeploysDemoTokens(t *testing.T) {
	a, err := New(config.Default(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Tokens)
	kinds := map[string]int{}
	for _, c := range a.Ledger.Contracts() {
		kinds[c.Kind()]++
	}
	assert.Equal(t, map[string]int{"ERC20": 1, "ERC1155": 1, "ERC721": 1, sales.ContractKind: 1}, kinds)
}

func TestNewWithoutDemoTokens(t *testing.T) {
	cfg := config.Default()
	cfg.DemoTokens = false

	a, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Tokens)
	assert.Len(t, a.Ledger.Contracts(), 1)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "postgres"

	_, err := New(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestBoltBackendDropsUnbackedSalesOnRestart(t *testing.T) {
	ctx := context.Background()
	seller := common.HexToAddress("0x00000000000000000000000000000000005e11e7")
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendBolt
	cfg.Storage.Path = filepath.Join(t.TempDir(), "sales.db")

	list := func(a *App) (*sales.Sale, error) {
		nft, id := a.Tokens.NFT, uint256.NewInt(5678)
		_, err := a.Ledger.Execute(ctx, seller, func(tx *ledger.Tx) error {
			if err := nft.Mint(tx, seller, id); err != nil {
				return err
			}
			return nft.Approve(tx, a.Sales.Address(), id)
		})
		require.NoError(t, err)
		return a.Sales.CreateSaleUniqueAsset(ctx, seller, nft.Address(), id, uint256.NewInt(10), a.Tokens.Coins.Address())
	}

	a, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	first, err := list(a)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// Token state lives only in memory, so the restarted ledger no longer
	// backs the stored sale.
	b, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, a.Sales.Address(), b.Sales.Address())
	_, err = b.Sales.GetSale(ctx, b.Tokens.NFT.Address(), uint256.NewInt(5678))
	assert.ErrorIs(t, err, sales.ErrNotFound)
	found, _, err := b.Sales.SearchSales(ctx, sales.SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Len(t, b.Ledger.Events(ledger.EventFilter{Name: "SaleExpired"}), 1)

	second, err := list(b)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}
