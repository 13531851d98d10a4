package service

import "errors"

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrEventNotOnSale   = errors.New("event is not on sale")
	ErrCategoryNotFound = errors.New("ticket category not found")
	ErrCategoryInactive = errors.New("ticket category is not active")

	// ErrCapacityExceeded means the reservation would push the category or
	// event counter past its maximum. Retryable by picking another category.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketNotActive   = errors.New("ticket is not active")
	ErrInvalidTransition = errors.New("invalid ticket status transition")

	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentNotApproved = errors.New("payment is not approved")

	ErrInvalidScannerCredentials = errors.New("invalid scanner credentials")
	ErrScannerInactive           = errors.New("scanner is inactive")
	ErrScannerNotFound           = errors.New("scanner not found")

	ErrUnknownCredential = errors.New("unknown credential")
)
