package tokens

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"nft_marketplace/internal/ledger"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	operator = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func exec(t *testing.T, l *ledger.Ledger, caller common.Address, fn func(tx *ledger.Tx) error) error {
	t.Helper()
	_, err := l.Execute(context.Background(), caller, fn)
	return err
}

func deployERC20(t *testing.T) (*ledger.Ledger, *ERC20) {
	l := ledger.New(zaptest.NewLogger(t))
	_, c := l.Deploy(deployer, func(addr common.Address) ledger.Contract { return NewERC20(addr, "Coins", "COIN") })
	return l, c.(*ERC20)
}

func TestERC20_MintApproveTransferFrom(t *testing.T) {
	l, coin := deployERC20(t)

	require.NoError(t, exec(t, l, alice, func(tx *ledger.Tx) error {
		return coin.Mint(tx, alice, uint256.NewInt(100))
	}))
	require.NoError(t, exec(t, l, alice, func(tx *ledger.Tx) error {
		return coin.Approve(tx, operator, uint256.NewInt(60))
	}))
	require.NoError(t, exec(t, l, operator, func(tx *ledger.Tx) error {
		return coin.TransferFrom(tx, alice, bob, uint256.NewInt(40))
	}))

	assert.Equal(t, uint64(60), coin.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(40), coin.BalanceOf(bob).Uint64())
	assert.Equal(t, uint64(20), coin.Allowance(alice, operator).Uint64())
	assert.Equal(t, uint64(100), coin.TotalSupply().Uint64())
}

func TestERC20_TransferFromFailures(t *testing.T) {
	l, coin := deployERC20(t)
	require.NoError(t, exec(t, l, alice, func(tx *ledger.Tx) error {
		if err := coin.Mint(tx, alice, uint256.NewInt(10)); err != nil {
			return err
		}
		return coin.Approve(tx, operator, uint256.NewInt(50))
	}))

	err := exec(t, l, operator, func(tx *ledger.Tx) error {
		return coin.TransferFrom(tx, alice, bob, uint256.NewInt(20))
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	err = exec(t, l, bob, func(tx *ledger.Tx) error {
		return coin.TransferFrom(tx, alice, bob, uint256.NewInt(1))
	})
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	assert.Equal(t, uint64(10), coin.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(50), coin.Allowance(alice, operator).Uint64())
}

func TestERC20_RevertRestoresBalances(t *testing.T) {
	l, coin := deployERC20(t)
	require.NoError(t, exec(t, l, alice, func(tx *ledger.Tx) error {
		return coin.Mint(tx, alice, uint256.NewInt(10))
	}))

	err := exec(t, l, alice, func(tx *ledger.Tx) error {
		if err := coin.Transfer(tx, bob, uint256.NewInt(7)); err != nil {
			return err
		}
		return coin.Transfer(tx, bob, uint256.NewInt(7))
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(10), coin.BalanceOf(alice).Uint64())
	assert.True(t, coin.BalanceOf(bob).IsZero())
}

func TestERC20_MintOverflow(t *testing.T) {
	l, coin := deployERC20(t)
	ceiling := new(uint256.Int).SetAllOne()
	require.NoError(t, exec(t, l, alice, func(tx *ledger.Tx) error {
		return coin.Mint(tx, alice, ceiling)
	}))

	err := exec(t, l, bob, func(tx *ledger.Tx) error {
		return coin.Mint(tx, bob, uint256.NewInt(1))
	})
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestERC1155_TransferNeedsOperator(t *testing.T) {
	l := ledger.New(zaptest.NewLogger(t))
	_, c := l.Deploy(deployer, func(addr common.Address) ledger.Contract { return NewERC1155(addr, "ipfs://{id}") })
	multi := c.(*ERC1155)
	id := uint256.NewInt(1234)

	require.NoError(t, exec(t, l, alice, func(tx *ledger.Tx) error {
		return multi.Mint(tx, id, uint256.NewInt(10))
	}))
	assert.Equal(t, uint64(10), multi.BalanceOf(alice, id).Uint64())

	err := exec(t, l, operator, func(tx *ledger.Tx) error {
		return multi.SafeTransferFrom(tx, alice, bob, id, uint256.NewInt(3))
	})
	assert.ErrorIs(t, err, ErrNotApproved)

	require.NoError(t, exec(t, l, alice, func(tx *ledger.Tx) error {
		return multi.SetApprovalForAll(tx, operator, true)
	}))
	assert.True(t, multi.IsApprovedForAll(alice, operator))

	require.NoError(t, exec(t, l, operator, func(tx *ledger.Tx) error {
		return multi.SafeTransferFrom(tx, alice, bob, id, uint256.NewInt(3))
	}))
	assert.Equal(t, uint64(7), multi.BalanceOf(alice, id).Uint64())
	assert.Equal(t, uint64(3), multi.BalanceOf(bob, id).Uint64())

	err = exec(t, l, operator, func(tx *ledger.Tx) error {
		return multi.SafeTransferFrom(tx, alice, bob, id, uint256.NewInt(8))
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestERC721_MintApproveTransfer(t *testing.T) {
	l := ledger.New(zaptest.NewLogger(t))
	_, c := l.Deploy(deployer, func(addr common.Address) ledger.Contract { return NewERC721(addr, "MyNFT", "NFT") })
	nft := c.(*ERC721)
	id := uint256.NewInt(5678)

	require.NoError(t, exec(t, l, alice, func(tx *ledger.Tx) error {
		return nft.Mint(tx, alice, id)
	}))
	err := exec(t, l, bob, func(tx *ledger.Tx) error {
		return nft.Mint(tx, bob, id)
	})
	assert.ErrorIs(t, err, ErrTokenExists)

	owner, err := nft.OwnerOf(id)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	err = exec(t, l, operator, func(tx *ledger.Tx) error {
		return nft.TransferFrom(tx, alice, bob, id)
	})
	assert.ErrorIs(t, err, ErrNotApproved)

	require.NoError(t, exec(t, l, alice, func(tx *ledger.Tx) error {
		return nft.Approve(tx, operator, id)
	}))
	assert.True(t, nft.CanTransfer(operator, id))

	require.NoError(t, exec(t, l, operator, func(tx *ledger.Tx) error {
		return nft.TransferFrom(tx, alice, bob, id)
	}))

	owner, err = nft.OwnerOf(id)
	require.NoError(t, err)
	assert.Equal(t, bob, owner)
	assert.Equal(t, uint64(0), nft.BalanceOf(alice))
	assert.Equal(t, uint64(1), nft.BalanceOf(bob))
	assert.Equal(t, common.Address{}, nft.GetApproved(id), "approval is cleared on transfer")

	err = exec(t, l, alice, func(tx *ledger.Tx) error {
		return nft.TransferFrom(tx, alice, bob, id)
	})
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = nft.OwnerOf(uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrNonexistentToken)
}
