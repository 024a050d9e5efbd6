package cart

import (
	"errors"
	"fmt"
)

var (
	ErrLineNotFound = errors.New("cart line not found")
	ErrAccessDenied = errors.New("access denied")
)

// StockLimitError is returned when an increment would push the line past
// the live stock level. Available carries the ceiling so the caller can
// roll its display back to it.
type StockLimitError struct {
	Available int32
}

func (e *StockLimitError) Error() string {
	return fmt.Sprintf("quantity exceeds available stock (%d left)", e.Available)
}
