package config

import (
	"fmt"
	"strings"
)

// StorageConfig holds the object storage settings for product images.
type StorageConfig struct {
	Bucket        string `koanf:"bucket"`
	PublicBaseURL string `koanf:"publicbaseurl"`
}

// String returns a string representation of the storage configuration.
func (c *StorageConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  bucket: %s\n", c.Bucket))
	b.WriteString(fmt.Sprintf("  publicbaseurl: %s\n", c.PublicBaseURL))
	return b.String()
}

func (c *StorageConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("storage bucket is not configured")
	}
	return nil
}
