package tokens

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nft_marketplace/internal/ledger"
)

var _ ledger.Contract = (*ERC20)(nil)

// ERC20 is a fungible token. Read methods must run inside ledger.Execute or
// ledger.View.
type ERC20 struct {
	address common.Address
	name    string
	symbol  string

	totalSupply uint256.Int
	balances    map[common.Address]uint256.Int
	allowances  map[common.Address]map[common.Address]uint256.Int
}

// NewERC20 builds a token bound to addr; pass it to ledger.Deploy.
func NewERC20(addr common.Address, name, symbol string) *ERC20 {
	return &ERC20{
		address:    addr,
		name:       name,
		symbol:     symbol,
		balances:   map[common.Address]uint256.Int{},
		allowances: map[common.Address]map[common.Address]uint256.Int{},
	}
}

func (t *ERC20) Kind() string            { return "ERC20" }
func (t *ERC20) Address() common.Address { return t.address }
func (t *ERC20) Name() string            { return t.name }
func (t *ERC20) Symbol() string          { return t.symbol }

func (t *ERC20) TotalSupply() *uint256.Int {
	v := t.totalSupply
	return &v
}

func (t *ERC20) BalanceOf(owner common.Address) *uint256.Int {
	v := t.balances[owner]
	return &v
}

func (t *ERC20) Allowance(owner, spender common.Address) *uint256.Int {
	v := t.allowances[owner][spender]
	return &v
}

// Mint creates amount new tokens for to. Anyone may mint, as in the test
// token the marketplace is exercised with.
func (t *ERC20) Mint(tx *ledger.Tx, to common.Address, amount *uint256.Int) error {
	if isZero(to) {
		return fmt.Errorf("mint: %w", ErrZeroAddress)
	}
	supply, err := credit(t.totalSupply, amount)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	bal, err := credit(t.balances[to], amount)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}

	prevSupply := t.totalSupply
	t.totalSupply = supply
	tx.OnRevert(func() { t.totalSupply = prevSupply })
	set(tx, t.balances, to, bal)

	t.emitTransfer(tx, common.Address{}, to, amount)
	return nil
}

// Transfer moves amount from the caller to to.
func (t *ERC20) Transfer(tx *ledger.Tx, to common.Address, amount *uint256.Int) error {
	return t.move(tx, tx.Caller, to, amount)
}

// Approve sets the caller's allowance for spender to amount.
func (t *ERC20) Approve(tx *ledger.Tx, spender common.Address, amount *uint256.Int) error {
	if isZero(spender) {
		return fmt.Errorf("approve: %w", ErrZeroAddress)
	}
	set(tx, inner(t.allowances, tx.Caller), spender, *amount)
	tx.Emit(t.address, "Approval", map[string]string{
		"owner":   tx.Caller.Hex(),
		"spender": spender.Hex(),
		"value":   amount.Dec(),
	})
	return nil
}

// TransferFrom moves amount from from to to, spending the caller's allowance.
func (t *ERC20) TransferFrom(tx *ledger.Tx, from, to common.Address, amount *uint256.Int) error {
	allowances := inner(t.allowances, from)
	allowed := allowances[tx.Caller]
	if allowed.Lt(amount) {
		return fmt.Errorf("transferFrom: %w: allowed %s, need %s", ErrInsufficientAllowance, allowed.Dec(), amount.Dec())
	}
	if err := t.move(tx, from, to, amount); err != nil {
		return err
	}
	var left uint256.Int
	left.Sub(&allowed, amount)
	set(tx, allowances, tx.Caller, left)
	return nil
}

func (t *ERC20) move(tx *ledger.Tx, from, to common.Address, amount *uint256.Int) error {
	if isZero(to) {
		return fmt.Errorf("transfer: %w", ErrZeroAddress)
	}
	fromBal, err := debit(t.balances[from], amount)
	if err != nil {
		return fmt.Errorf("transfer: %w: %s holds %s, need %s", err, from.Hex(), t.BalanceOf(from).Dec(), amount.Dec())
	}
	set(tx, t.balances, from, fromBal)

	// from may equal to, so read the credited balance after the debit.
	toBal, err := credit(t.balances[to], amount)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	set(tx, t.balances, to, toBal)

	t.emitTransfer(tx, from, to, amount)
	return nil
}

func (t *ERC20) emitTransfer(tx *ledger.Tx, from, to common.Address, amount *uint256.Int) {
	tx.Emit(t.address, "Transfer", map[string]string{
		"from":  from.Hex(),
		"to":    to.Hex(),
		"value": amount.Dec(),
	})
}
