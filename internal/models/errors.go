package models

import "errors"

// Workflow error taxonomy. Services return these wrapped with context;
// the HTTP layer maps them to problem responses.
var (
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyProcessed    = errors.New("request already processed")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAmountOutOfRange    = errors.New("amount out of range")
	ErrPlanInactive        = errors.New("investment plan is inactive")
	ErrPlanReferenced      = errors.New("investment plan is referenced by investments")
	ErrValidation          = errors.New("invalid input")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
