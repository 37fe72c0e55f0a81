package services

import "github.com/pkg/errors"

// Errors returned by the distribution services
var (
	ErrBoqNotFound           = errors.New("BOQ not found")
	ErrAccessNotFound        = errors.New("supplier has no access to this BOQ")
	ErrDeclineReasonRequired = errors.New("a decline reason is required")
	ErrAccessTerminal        = errors.New("supplier has already responded to this BOQ")
	ErrInvalidQuote          = errors.New("invalid quote payload")
	ErrInvalidReminder       = errors.New("reminder days must be between 1 and 30")
	ErrNoLineItems           = errors.New("BOQ has no RFQ to consolidate")
)
