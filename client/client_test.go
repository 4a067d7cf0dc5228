package client_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"nft_marketplace/client"
	"nft_marketplace/internal/app"
	"nft_marketplace/internal/config"
	"nft_marketplace/internal/sales"
)

var (
	seller = common.HexToAddress("0x00000000000000000000000000000000005e11e7")
	buyer  = common.HexToAddress("0x0000000000000000000000000000000000b0b0b0")
)

func newServer(t *testing.T) (*client.Client, *app.App) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a, err := app.New(config.Default(), zaptest.NewLogger(t))
	require.NoError(t, err)
	srv := httptest.NewServer(a.Handler())
	c := client.New(srv.URL)
	t.Cleanup(func() {
		_ = c.Close()
		srv.Close()
		_ = a.Close()
	})
	return c, a
}

func TestClientMultiQuantityScenario(t *testing.T) {
	ctx := context.Background()
	c, _ := newServer(t)
	require.NoError(t, c.Ping(ctx))

	contracts, err := c.Contracts(ctx)
	require.NoError(t, err)
	require.Len(t, contracts["ERC20"], 1)
	require.Len(t, contracts["ERC1155"], 1)
	require.Len(t, contracts[sales.ContractKind], 1)
	coins, multi, market := contracts["ERC20"][0], contracts["ERC1155"][0], contracts[sales.ContractKind][0]

	s, b := c.As(seller), c.As(buyer)
	id := uint256.NewInt(1234)

	_, err = s.Mint(ctx, multi, nil, id, uint256.NewInt(10))
	require.NoError(t, err)
	_, err = s.SetApprovalForAll(ctx, multi, market, true)
	require.NoError(t, err)

	sale, err := s.CreateSale1155(ctx, multi, id, uint256.NewInt(10), uint256.NewInt(10), coins)
	require.NoError(t, err)
	assert.Equal(t, seller, sale.Owner)

	_, err = s.CreateSale1155(ctx, multi, id, uint256.NewInt(10), uint256.NewInt(10), coins)
	assert.ErrorIs(t, err, sales.ErrSaleAlreadyActive)

	_, err = b.BuySale1155(ctx, multi, id, uint256.NewInt(4))
	assert.ErrorIs(t, err, sales.ErrInsufficientFunds)

	_, err = b.Mint(ctx, coins, nil, nil, uint256.NewInt(100))
	require.NoError(t, err)
	_, err = b.Approve(ctx, coins, market, uint256.NewInt(100), nil)
	require.NoError(t, err)

	p, err := b.BuySale1155(ctx, multi, id, uint256.NewInt(4))
	require.NoError(t, err)
	assert.Equal(t, "40", p.TotalPrice)
	assert.Equal(t, "6", p.Remaining)
	assert.False(t, p.Cleared)

	_, err = b.BuySale1155(ctx, multi, id, uint256.NewInt(7))
	assert.ErrorIs(t, err, sales.ErrInsufficientQuantity)

	got, err := c.GetSale(ctx, multi, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), got.NumberOfAssets.Uint64())
	assert.Equal(t, 2, got.Version)

	_, err = b.BuySale1155(ctx, multi, id, uint256.NewInt(6))
	require.NoError(t, err)

	_, err = c.GetSale(ctx, multi, id)
	assert.ErrorIs(t, err, sales.ErrNotFound)

	bal, err := c.BalanceOf(ctx, multi, buyer, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bal.Uint64())
	bal, err = c.BalanceOf(ctx, coins, seller, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal.Uint64())

	events, err := c.Events(ctx, market, "SaleFulfilled")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestClientUniqueAssetScenario(t *testing.T) {
	ctx := context.Background()
	c, a := newServer(t)
	coins, nft, market := a.Tokens.Coins.Address(), a.Tokens.NFT.Address(), a.Sales.Address()
	s, b := c.As(seller), c.As(buyer)
	id := uint256.NewInt(5678)

	_, err := s.Mint(ctx, nft, nil, id, nil)
	require.NoError(t, err)

	_, err = s.CreateSale721(ctx, nft, id, uint256.NewInt(10), coins)
	assert.ErrorIs(t, err, sales.ErrAuthorization)

	_, err = s.Approve(ctx, nft, market, nil, id)
	require.NoError(t, err)
	_, err = s.CreateSale721(ctx, nft, id, uint256.NewInt(10), coins)
	require.NoError(t, err)

	res, err := c.SearchSales(ctx, nil, &nft, sales.StandardERC721)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 1, res.Metadata.ERC721)

	_, err = s.BuySale721(ctx, nft, id)
	assert.ErrorIs(t, err, sales.ErrValidation)

	_, err = b.Mint(ctx, coins, nil, nil, uint256.NewInt(10))
	require.NoError(t, err)
	_, err = b.Approve(ctx, coins, market, uint256.NewInt(10), nil)
	require.NoError(t, err)
	p, err := b.BuySale721(ctx, nft, id)
	require.NoError(t, err)
	assert.True(t, p.Cleared)

	owner, err := c.OwnerOf(ctx, nft, id)
	require.NoError(t, err)
	assert.Equal(t, buyer, owner)

	res, err = c.SearchSales(ctx, nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestClientRequiresCaller(t *testing.T) {
	c, a := newServer(t)

	_, err := c.Mint(context.Background(), a.Tokens.Coins.Address(), nil, nil, uint256.NewInt(1))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
}

func TestAPIErrorIs(t *testing.T) {
	tests := []struct {
		name string
		err  *client.APIError
		is   []error
		not  []error
	}{
		{
			name: "bad request",
			err:  &client.APIError{StatusCode: 400, Message: "invalid sale request: price must be greater than zero"},
			is:   []error{sales.ErrValidation},
			not:  []error{sales.ErrSaleAlreadyActive, sales.ErrInsufficientQuantity},
		},
		{
			name: "already active",
			err:  &client.APIError{StatusCode: 409, Message: "invalid sale request: sale already active: x"},
			is:   []error{sales.ErrSaleAlreadyActive, sales.ErrValidation},
			not:  []error{sales.ErrInsufficientQuantity},
		},
		{
			name: "insufficient quantity",
			err:  &client.APIError{StatusCode: 409, Message: "insufficient quantity: seller: not authorized"},
			is:   []error{sales.ErrInsufficientQuantity},
			not:  []error{sales.ErrAuthorization, sales.ErrValidation, sales.ErrSaleAlreadyActive},
		},
		{
			name: "funds with a misleading message",
			err:  &client.APIError{StatusCode: 402, Message: "insufficient funds: sale not found"},
			is:   []error{sales.ErrInsufficientFunds},
			not:  []error{sales.ErrNotFound},
		},
		{
			name: "forbidden",
			err:  &client.APIError{StatusCode: 403, Message: "not authorized"},
			is:   []error{sales.ErrAuthorization},
		},
		{
			name: "not found",
			err:  &client.APIError{StatusCode: 404, Message: "sale not found"},
			is:   []error{sales.ErrNotFound},
		},
		{
			name: "internal",
			err:  &client.APIError{StatusCode: 500, Message: "internal error"},
			not:  []error{sales.ErrValidation, sales.ErrNotFound, sales.ErrInsufficientFunds},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, target := range tt.is {
				assert.ErrorIs(t, tt.err, target)
			}
			for _, target := range tt.not {
				assert.NotErrorIs(t, tt.err, target)
			}
		})
	}
}
