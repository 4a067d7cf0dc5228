package sales

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation covers zero quantities, mismatched asset standards and malformed input.
	ErrValidation = errors.New("invalid sale request")
	// ErrAuthorization is returned when the caller does not own the asset or
	// has not authorized the marketplace to move it.
	ErrAuthorization = errors.New("not authorized")
	// ErrNotFound is returned when no active sale exists for a key.
	ErrNotFound = errors.New("sale not found")
	// ErrInsufficientQuantity is returned when a purchase asks for more units than remain.
	ErrInsufficientQuantity = errors.New("insufficient sale quantity")
	// ErrInsufficientFunds is returned when the buyer's balance or allowance cannot cover the price.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSaleAlreadyActive is returned when listing a key that already has an active sale.
	ErrSaleAlreadyActive = fmt.Errorf("%w: sale already active", ErrValidation)
)
