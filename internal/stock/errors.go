// Package errors for stock reconciliation. Callers match with errors.Is.
package stock

import "errors"

var ErrProductNotFound = errors.New("product not found")
var ErrVariantNotFound = errors.New("variant not found")
var ErrInsufficientStock = errors.New("insufficient stock")
var ErrInvalidQuantity = errors.New("requested quantity must be greater than zero")
