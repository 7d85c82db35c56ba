package models

import "errors"

var (
	// ErrConnectionRejected: wallet handshake declined or no provider available.
	ErrConnectionRejected = errors.New("wallet connection rejected")
	// ErrRepositoryUnavailable: a listing scan failed part way or entirely.
	ErrRepositoryUnavailable = errors.New("listing repository unavailable")
	// ErrValidationFailed: local input constraint violated, never reaches the network.
	ErrValidationFailed = errors.New("validation failed")
	// ErrInsufficientFunds: local balance pre-check failed before submission.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrTxRejected: the signer declined the transaction.
	ErrTxRejected = errors.New("transaction rejected")
	// ErrTxReverted: the contract or node refused the transaction.
	ErrTxReverted = errors.New("transaction reverted")
	// ErrTxTimeout: confirmation did not arrive within the bounded wait.
	ErrTxTimeout = errors.New("transaction confirmation timed out")
	// ErrUploadFailed: the pinning service did not return a content identifier.
	ErrUploadFailed = errors.New("upload failed")
	// ErrNotEligible: a listing cannot enter the redemption workflow.
	ErrNotEligible = errors.New("listing not eligible for redemption")
	ErrNotFound    = errors.New("not found")
)
