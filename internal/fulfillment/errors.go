// Package errors for order fulfillment. Callers match with errors.Is.
package fulfillment

import "errors"

var ErrOrderNotFound = errors.New("order not found")
var ErrInvalidTransition = errors.New("order status does not permit this command")
var ErrAccessDenied = errors.New("access denied")
var ErrEmptyTracking = errors.New("tracking reference must not be empty")

// ErrConcurrencyConflict is returned when the stock transaction detected
// contention and aborted. The whole command can be retried safely.
var ErrConcurrencyConflict = errors.New("concurrent update detected, retry the command")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")
