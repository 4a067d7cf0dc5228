package tokens

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nft_marketplace/internal/ledger"
)

var _ ledger.Contract = (*ERC721)(nil)

// ERC721 is a non-fungible token contract: every id has exactly one owner.
type ERC721 struct {
	address common.Address
	name    string
	symbol  string

	owners    map[uint256.Int]common.Address
	approvals map[uint256.Int]common.Address
	balances  map[common.Address]uint64
	operators map[common.Address]map[common.Address]bool
}

func NewERC721(addr common.Address, name, symbol string) *ERC721 {
	return &ERC721{
		address:   addr,
		name:      name,
		symbol:    symbol,
		owners:    map[uint256.Int]common.Address{},
		approvals: map[uint256.Int]common.Address{},
		balances:  map[common.Address]uint64{},
		operators: map[common.Address]map[common.Address]bool{},
	}
}

func (t *ERC721) Kind() string            { return "ERC721" }
func (t *ERC721) Address() common.Address { return t.address }
func (t *ERC721) Name() string            { return t.name }
func (t *ERC721) Symbol() string          { return t.symbol }

func (t *ERC721) BalanceOf(owner common.Address) uint64 {
	return t.balances[owner]
}

// OwnerOf returns ErrNonexistentToken for ids that were never minted.
func (t *ERC721) OwnerOf(id *uint256.Int) (common.Address, error) {
	owner, ok := t.owners[*id]
	if !ok {
		return common.Address{}, fmt.Errorf("ownerOf %s: %w", id.Dec(), ErrNonexistentToken)
	}
	return owner, nil
}

func (t *ERC721) GetApproved(id *uint256.Int) common.Address {
	return t.approvals[*id]
}

func (t *ERC721) IsApprovedForAll(owner, operator common.Address) bool {
	return t.operators[owner][operator]
}

// Mint creates id for to.
func (t *ERC721) Mint(tx *ledger.Tx, to common.Address, id *uint256.Int) error {
	if isZero(to) {
		return fmt.Errorf("mint: %w", ErrZeroAddress)
	}
	if _, ok := t.owners[*id]; ok {
		return fmt.Errorf("mint %s: %w", id.Dec(), ErrTokenExists)
	}
	set(tx, t.owners, *id, to)
	set(tx, t.balances, to, t.balances[to]+1)
	t.emitTransfer(tx, common.Address{}, to, id)
	return nil
}

// Approve lets spender move id. The caller must own id or operate for its owner.
func (t *ERC721) Approve(tx *ledger.Tx, spender common.Address, id *uint256.Int) error {
	owner, err := t.OwnerOf(id)
	if err != nil {
		return err
	}
	if spender == owner {
		return fmt.Errorf("approve: %w", ErrSelfApproval)
	}
	if tx.Caller != owner && !t.IsApprovedForAll(owner, tx.Caller) {
		return fmt.Errorf("approve: %w", ErrNotApproved)
	}
	set(tx, t.approvals, *id, spender)
	tx.Emit(t.address, "Approval", map[string]string{
		"owner":    owner.Hex(),
		"approved": spender.Hex(),
		"tokenId":  id.Dec(),
	})
	return nil
}

func (t *ERC721) SetApprovalForAll(tx *ledger.Tx, operator common.Address, approved bool) error {
	if operator == tx.Caller {
		return fmt.Errorf("setApprovalForAll: %w", ErrSelfApproval)
	}
	set(tx, inner(t.operators, tx.Caller), operator, approved)
	tx.Emit(t.address, "ApprovalForAll", map[string]string{
		"owner":    tx.Caller.Hex(),
		"operator": operator.Hex(),
		"approved": strconv.FormatBool(approved),
	})
	return nil
}

// CanTransfer reports whether spender may move id on behalf of its owner.
func (t *ERC721) CanTransfer(spender common.Address, id *uint256.Int) bool {
	owner, ok := t.owners[*id]
	if !ok {
		return false
	}
	return spender == owner || t.approvals[*id] == spender || t.IsApprovedForAll(owner, spender)
}

// TransferFrom moves id from from to to and clears its single-token approval.
func (t *ERC721) TransferFrom(tx *ledger.Tx, from, to common.Address, id *uint256.Int) error {
	owner, err := t.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != from {
		return fmt.Errorf("transferFrom %s: %w", id.Dec(), ErrNotOwner)
	}
	if isZero(to) {
		return fmt.Errorf("transferFrom: %w", ErrZeroAddress)
	}
	if !t.CanTransfer(tx.Caller, id) {
		return fmt.Errorf("transferFrom %s: %w", id.Dec(), ErrNotApproved)
	}

	del(tx, t.approvals, *id)
	set(tx, t.balances, from, t.balances[from]-1)
	set(tx, t.balances, to, t.balances[to]+1)
	set(tx, t.owners, *id, to)

	t.emitTransfer(tx, from, to, id)
	return nil
}

func (t *ERC721) emitTransfer(tx *ledger.Tx, from, to common.Address, id *uint256.Int) {
	tx.Emit(t.address, "Transfer", map[string]string{
		"from":    from.Hex(),
		"to":      to.Hex(),
		"tokenId": id.Dec(),
	})
}
