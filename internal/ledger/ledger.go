package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// ErrUnknownContract is returned when no contract is deployed at an address.
var ErrUnknownContract = errors.New("unknown contract")

// Contract is anything that can be deployed on the ledger.
type Contract interface {
	// Kind names the contract type (e.g. "ERC20") for directory listings.
	Kind() string
}

// Ledger serializes every state-changing operation into a single total order.
// Execute holds the write lock for the whole transaction, so no other
// transaction or View can observe its intermediate states.
type Ledger struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	contracts map[common.Address]Contract
	nonces    map[common.Address]uint64
	events    []Event
	height    uint64
}

// New creates an empty ledger.
func New(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Ledger{
		logger:    logger,
		contracts: map[common.Address]Contract{},
		nonces:    map[common.Address]uint64{},
	}
}

// Deploy derives the next contract address for deployer, builds the contract
// with it and registers the result.
func (l *Ledger) Deploy(deployer common.Address, build func(addr common.Address) Contract) (common.Address, Contract) {
	l.mu.Lock()
	defer l.mu.Unlock()

	nonce := l.nonces[deployer]
	l.nonces[deployer] = nonce + 1
	addr := crypto.CreateAddress(deployer, nonce)

	c := build(addr)
	l.contracts[addr] = c
	l.logger.Info("contract deployed",
		zap.Stringer("address", addr),
		zap.String("kind", c.Kind()),
		zap.Stringer("deployer", deployer),
	)
	return addr, c
}

// Contract returns the contract deployed at addr.
func (l *Ledger) Contract(addr common.Address) (Contract, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.contract(addr)
}

func (l *Ledger) contract(addr common.Address) (Contract, error) {
	c, ok := l.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, addr.Hex())
	}
	return c, nil
}

// Contracts returns a snapshot of the contract directory.
func (l *Ledger) Contracts() map[common.Address]Contract {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[common.Address]Contract, len(l.contracts))
	for addr, c := range l.contracts {
		out[addr] = c
	}
	return out
}

// Execute runs fn as one transaction sent by caller. If fn fails or panics,
// every change recorded through tx.OnRevert is undone in reverse order and its
// events are dropped. Panics are re-raised after the rollback.
func (l *Ledger) Execute(ctx context.Context, caller common.Address, fn func(tx *Tx) error) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	nonce := l.nonces[caller]
	tx := &Tx{
		Caller: caller,
		Hash:   txHash(caller, nonce),
		ledger: l,
	}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			l.logger.Error("transaction panicked",
				zap.Stringer("tx", tx.Hash),
				zap.Stringer("caller", caller),
				zap.Any("panic", r),
			)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.rollback()
		l.logger.Debug("transaction reverted",
			zap.Stringer("tx", tx.Hash),
			zap.Stringer("caller", caller),
			zap.Error(err),
		)
		return nil, err
	}

	l.nonces[caller] = nonce + 1
	l.height++
	for i := range tx.events {
		tx.events[i].TxHash = tx.Hash
		tx.events[i].Block = l.height
	}
	l.events = append(l.events, tx.events...)

	return &Receipt{
		TxHash: tx.Hash,
		Block:  l.height,
		Events: tx.events,
	}, nil
}

// View runs read-only code with the same isolation as Execute.
func (l *Ledger) View(fn func() error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn()
}

// Events returns the logged events that match filter, oldest first.
func (l *Ledger) Events(filter EventFilter) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, 0)
	for _, e := range l.events {
		if filter.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Height is the number of committed transactions.
func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.height
}

func txHash(caller common.Address, nonce uint64) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256Hash(caller.Bytes(), n[:])
}

// Tx is a transaction in flight. It is only valid inside the Execute callback.
type Tx struct {
	Caller common.Address
	Hash   common.Hash

	ledger *Ledger
	undo   []func()
	events []Event
}

// OnRevert records how to undo a change that was just applied.
func (tx *Tx) OnRevert(undo func()) {
	tx.undo = append(tx.undo, undo)
}

// Emit queues an event; it is logged only if the transaction commits.
func (tx *Tx) Emit(contract common.Address, name string, fields map[string]string) {
	tx.events = append(tx.events, Event{
		Contract: contract,
		Name:     name,
		Fields:   fields,
	})
}

// Contract looks up a deployed contract from inside the transaction.
func (tx *Tx) Contract(addr common.Address) (Contract, error) {
	return tx.ledger.contract(addr)
}

// Call runs fn with a different caller, as a contract calling another
// contract does. Changes and events stay in this transaction.
func (tx *Tx) Call(caller common.Address, fn func(tx *Tx) error) error {
	prev := tx.Caller
	tx.Caller = caller
	defer func() { tx.Caller = prev }()
	return fn(tx)
}

func (tx *Tx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.events = nil
}
