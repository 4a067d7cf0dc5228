package tokens

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nft_marketplace/internal/ledger"
)

var _ ledger.Contract = (*ERC1155)(nil)

// ERC1155 is a multi-token contract: every id is a class of fungible units.
type ERC1155 struct {
	address common.Address
	uri     string

	balances  map[uint256.Int]map[common.Address]uint256.Int
	operators map[common.Address]map[common.Address]bool
}

func NewERC1155(addr common.Address, uri string) *ERC1155 {
	return &ERC1155{
		address:   addr,
		uri:       uri,
		balances:  map[uint256.Int]map[common.Address]uint256.Int{},
		operators: map[common.Address]map[common.Address]bool{},
	}
}

func (t *ERC1155) Kind() string            { return "ERC1155" }
func (t *ERC1155) Address() common.Address { return t.address }
func (t *ERC1155) URI() string             { return t.uri }

func (t *ERC1155) BalanceOf(owner common.Address, id *uint256.Int) *uint256.Int {
	v := t.balances[*id][owner]
	return &v
}

func (t *ERC1155) IsApprovedForAll(owner, operator common.Address) bool {
	return t.operators[owner][operator]
}

// Mint creates amount units of id for the caller.
func (t *ERC1155) Mint(tx *ledger.Tx, id, amount *uint256.Int) error {
	holders := inner(t.balances, *id)
	bal, err := credit(holders[tx.Caller], amount)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	set(tx, holders, tx.Caller, bal)
	t.emitTransferSingle(tx, common.Address{}, tx.Caller, id, amount)
	return nil
}

// SetApprovalForAll lets operator move every id the caller holds.
func (t *ERC1155) SetApprovalForAll(tx *ledger.Tx, operator common.Address, approved bool) error {
	if operator == tx.Caller {
		return fmt.Errorf("setApprovalForAll: %w", ErrSelfApproval)
	}
	set(tx, inner(t.operators, tx.Caller), operator, approved)
	tx.Emit(t.address, "ApprovalForAll", map[string]string{
		"account":  tx.Caller.Hex(),
		"operator": operator.Hex(),
		"approved": strconv.FormatBool(approved),
	})
	return nil
}

// SafeTransferFrom moves amount units of id; the caller must be from or one of
// its operators.
func (t *ERC1155) SafeTransferFrom(tx *ledger.Tx, from, to common.Address, id, amount *uint256.Int) error {
	if isZero(to) {
		return fmt.Errorf("safeTransferFrom: %w", ErrZeroAddress)
	}
	if tx.Caller != from && !t.IsApprovedForAll(from, tx.Caller) {
		return fmt.Errorf("safeTransferFrom: %w", ErrNotApproved)
	}

	holders := inner(t.balances, *id)
	fromBal, err := debit(holders[from], amount)
	if err != nil {
		return fmt.Errorf("safeTransferFrom: %w: %s holds %s of id %s, need %s",
			err, from.Hex(), t.BalanceOf(from, id).Dec(), id.Dec(), amount.Dec())
	}
	set(tx, holders, from, fromBal)

	toBal, err := credit(holders[to], amount)
	if err != nil {
		return fmt.Errorf("safeTransferFrom: %w", err)
	}
	set(tx, holders, to, toBal)

	t.emitTransferSingle(tx, from, to, id, amount)
	return nil
}

func (t *ERC1155) emitTransferSingle(tx *ledger.Tx, from, to common.Address, id, amount *uint256.Int) {
	tx.Emit(t.address, "TransferSingle", map[string]string{
		"operator": tx.Caller.Hex(),
		"from":     from.Hex(),
		"to":       to.Hex(),
		"id":       id.Dec(),
		"value":    amount.Dec(),
	})
}
