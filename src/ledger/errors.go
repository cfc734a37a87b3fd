package ledger

import "errors"

var (
	// ErrDuplicateIdentity is returned when a personal account already exists
	// for a credential.
	ErrDuplicateIdentity = errors.New("account already exists for this identity")

	// ErrDuplicateBusiness is returned when a business account already exists
	// for a business id.
	ErrDuplicateBusiness = errors.New("account already exists for this business id")

	// ErrInvalidAccountType is returned when a business account is requested
	// with the Personal type.
	ErrInvalidAccountType = errors.New("invalid account type")

	// ErrAccountNotFound ...
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount is returned for amounts that are zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSendNotAllowed is returned when the policy forbids an account from
	// sending.
	ErrSendNotAllowed = errors.New("account is not allowed to send")

	// ErrReceiveNotAllowed is returned when the policy forbids an account from
	// receiving.
	ErrReceiveNotAllowed = errors.New("account is not allowed to receive")

	// ErrAccountInactive is returned by CreditActive for deactivated accounts.
	ErrAccountInactive = errors.New("account is inactive")
)
