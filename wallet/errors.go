package wallet

import "errors"

// ErrWallet covers structural and integrity failures inside the wallet
// store. Fatal to the request; the surrounding transaction rolls back.
var ErrWallet = errors.New("wallet error")

var ErrUserNotFound = errors.New("user not found")

// ErrInsufficientBalance is an expected, caller-retryable condition, not a
// bug: fund the account and try again.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrForbiddenTransfer rejects transfers outside a direct parent/child
// relationship.
var ErrForbiddenTransfer = errors.New("transfer outside direct relationship")
