package services

import "errors"

// Business errors returned synchronously to callers. Handlers map them to 4xx.
var (
	ErrCatalogItemNotFound   = errors.New("catalog item not found")
	ErrScanInProgress        = errors.New("catalog scan already in progress")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderNotCancellable   = errors.New("order can no longer be cancelled")
	ErrInvalidOrderRequest   = errors.New("invalid order request")
	ErrDisputeExists         = errors.New("order already has an active dispute")
	ErrDisputeNotFound       = errors.New("dispute not found")
	ErrDisputeClosed         = errors.New("dispute is already closed")
	ErrInvalidDisputeRequest = errors.New("invalid dispute request")
	ErrInvalidWebhook        = errors.New("invalid webhook envelope")
	ErrJobNotFound           = errors.New("job not found")
	ErrJobRunning            = errors.New("job is already running")
)
