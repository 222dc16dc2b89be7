package presale

import (
	"errors"

	"github.com/pflow-xyz/go-presale/fixedpoint"
)

// Domain errors. Every command either succeeds completely or fails with
// one of these and zero state mutation; the host maps them to its own
// status codes with errors.Is.
var (
	// Lifecycle.
	ErrNotInitialized      = errors.New("presale not initialized")
	ErrAlreadyInitialized  = errors.New("presale already initialized")
	ErrPresaleFinalized    = errors.New("presale has been finalized")
	ErrPresaleNotFinalized = errors.New("presale has not been finalized")
	ErrAlreadyFinalized    = errors.New("presale already finalized")
	ErrTimeLockActive      = errors.New("withdraw time lock is active")

	// Round window.
	ErrRoundNotStarted = errors.New("round has not started")
	ErrRoundEnded      = errors.New("round has ended")

	// Compliance.
	ErrNotWhitelisted = errors.New("buyer not whitelisted")
	ErrKYCRequired    = errors.New("kyc verification required")

	// Quota.
	ErrRateLimitExceeded      = errors.New("purchase rate limit exceeded")
	ErrExceedsMaxTransaction  = errors.New("exceeds maximum transaction amount")
	ErrExceedsRoundAllocation = errors.New("exceeds round allocation")
	ErrExceedsHardCap         = errors.New("exceeds hard cap")

	// Pricing.
	ErrPriceFeedNotSet = errors.New("price feed not set")

	// Post-sale.
	ErrNoTokensAvailable = errors.New("no tokens available to claim")
	ErrSoftCapReached    = errors.New("soft cap has been reached")
	ErrAlreadyRefunded   = errors.New("already refunded")

	// Dispatch.
	ErrUnauthorized         = errors.New("caller is not the presale authority")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrUnknownRound         = errors.New("unknown round")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrInvalidConfig        = errors.New("invalid presale configuration")
	ErrInsufficientReserve  = errors.New("insufficient reserve")
)

// ErrOverflow is the arithmetic kernel's failure, re-exported so hosts
// classify against a single package.
var ErrOverflow = fixedpoint.ErrOverflow
