package config

import (
	"fmt"
	"strings"
)

// StockConfig holds the stock reconciliation settings.
type StockConfig struct {
	// LowThreshold is the remaining quantity at or below which a
	// "low stock" seller alert is emitted. Zero remaining is reported
	// as out of stock regardless of this value.
	LowThreshold int32 `koanf:"lowthreshold"`
}

// String returns a string representation of the stock configuration.
func (c *StockConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Stock ---\n")
	b.WriteString(fmt.Sprintf("  lowthreshold: %d\n", c.LowThreshold))
	return b.String()
}

func (c *StockConfig) Validate() error {
	if c.LowThreshold < 0 {
		return fmt.Errorf("stock low threshold must not be negative")
	}
	return nil
}
