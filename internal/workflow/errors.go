package workflow

import "errors"

var (
	// ErrValidation covers missing fields or media, raised before any network call
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientFunds blocks deployment when the known balance is below the minimum
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUpstreamUnavailable means the AI gateway or trading API was unreachable or returned non-2xx
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	// ErrMalformedUpstreamResponse is degraded locally and never returned to callers of the machine
	ErrMalformedUpstreamResponse = errors.New("malformed upstream response")
	// ErrOnChainFailure means the transaction was broadcast but did not confirm cleanly
	ErrOnChainFailure = errors.New("on-chain failure")
	ErrUnknownFailure = errors.New("unknown failure")

	ErrInvalidTransition  = errors.New("action not allowed in the current state")
	ErrBusy               = errors.New("another operation is in progress")
	ErrStaleSubmission    = errors.New("submission changed while the operation was in flight")
	ErrWalletNotConnected = errors.New("wallet not connected")
)
