// Package catalog error values. Callers match with errors.Is.
package catalog

import "errors"

var ErrEmptyCategory = errors.New("category must have a name and at least one value")
var ErrDuplicateCategory = errors.New("category name already in use")
var ErrUnknownCategory = errors.New("category not found")

var ErrDuplicateCombination = errors.New("a variant with this combination already exists")
var ErrIncompleteSelection = errors.New("selection must pick exactly one value per category")
var ErrUnknownValue = errors.New("selected value is not defined for the category")

var ErrUnknownVariant = errors.New("variant not found")

var ErrInvalidVariantPrice = errors.New("variant price must be greater than zero")
