package tokens

import "errors"

var (
	// ErrInsufficientBalance is returned when the sender holds less than the amount moved.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientAllowance is returned when a spender's allowance is below the amount moved.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrNotApproved is returned when the caller is neither the holder nor an approved operator.
	ErrNotApproved = errors.New("caller is not owner nor approved")
	// ErrNotOwner is returned when a unique token is not held by the expected address.
	ErrNotOwner = errors.New("not token owner")
	// ErrTokenExists is returned when minting an id that already has an owner.
	ErrTokenExists = errors.New("token already minted")
	// ErrNonexistentToken is returned when querying an id that was never minted.
	ErrNonexistentToken = errors.New("nonexistent token")
	// ErrZeroAddress is returned when tokens would be sent to the zero address.
	ErrZeroAddress = errors.New("zero address")
	// ErrOverflow is returned when a credit would exceed the uint256 range.
	ErrOverflow = errors.New("amount overflows uint256")
	// ErrSelfApproval is returned when an ERC721 owner approves itself.
	ErrSelfApproval = errors.New("approval to current owner")
)
