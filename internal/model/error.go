package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthentication is returned on a wrong PIN or a tampered ciphertext.
// The two causes are deliberately indistinguishable.
var ErrAuthentication = errors.New("authentication failed: wrong PIN or corrupted wallet data")

// ErrKeyMalformed is returned when private key bytes cannot form a valid key.
var ErrKeyMalformed = errors.New("malformed private key")

// ConfigurationError is fatal: bad startup parameters, no recovery.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// DuplicateNameError is returned when creating a wallet under a taken name.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("wallet %q already exists", e.Name)
}

// NotFoundError is returned when a named wallet does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("wallet %q not found", e.Name)
}

// InsufficientFundsError reports how far the available UTXO set falls short
// of a requested payment, fee included.
type InsufficientFundsError struct {
	Required  uint64 // requested total plus fee, in nano
	Available uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %d nano (fee included), have %d nano, short %d nano",
		e.Required, e.Available, e.Shortfall())
}

// Shortfall returns the missing amount in nano.
func (e *InsufficientFundsError) Shortfall() uint64 {
	if e.Available >= e.Required {
		return 0
	}
	return e.Required - e.Available
}

// NetworkError wraps a failed node call together with the attempted operation
// so the caller can decide whether to re-issue it. Never retried automatically.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("node request %q failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RejectionError is the node refusing a submitted transaction. The cause
// (stale UTXO, low fee) must be addressed before rebuilding; no retry.
type RejectionError struct {
	TxID   string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("transaction %s rejected by node: %s", e.TxID, e.Reason)
}

// InternalInvariantError indicates a bug, not a user error. It aborts the
// command that hit it and must never be swallowed.
type InternalInvariantError struct {
	Msg string
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated: %s", e.Msg)
}

// RateLimitError is returned when unlock attempts come in faster than the
// configured budget allows.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many PIN attempts, retry in %s", e.RetryAfter.Round(time.Second))
}
