package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Payment lifecycle
	ErrDuplicatePendingPayment = errors.New("a pending payment already exists for this document")
	ErrInvalidTransition       = errors.New("payment status transition not allowed")
	ErrGatewayUnavailable      = errors.New("payment gateway unavailable")

	// Webhook authentication
	ErrMissingAuthHeaders = errors.New("missing webhook auth headers")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrMalformedEventBody = errors.New("malformed event body")

	// Refunds
	ErrRefundNotEligible = errors.New("document not eligible for refund")
	ErrNoPendingRefund   = errors.New("no pending refund request for this document")

	// Infra plumbing
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrLockNotAcquired    = errors.New("could not acquire lock")
)
