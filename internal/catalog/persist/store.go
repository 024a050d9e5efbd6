// Package persist writes authored catalog state to the backing store and
// the image host. A save is image uploads first, then one transactional
// product write, then best-effort cleanup of images nothing references
// anymore.
package persist

import (
	"context"

	"github.com/google/uuid"

	"github.com/vendora/marketplace/internal/catalog"
)

// ProductStore persists products and their variants.
type ProductStore interface {
	// FindByID loads the product with its variants and image references,
	// or ErrProductNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error)

	// Save writes the product row, its image references, the updated
	// variants and the created ones in a single transaction. Variants of
	// the product absent from both slices are deleted. The returned map
	// correlates each created variant's ephemeral token with its new
	// durable key.
	Save(ctx context.Context, product *catalog.Product, updated, created []catalog.Variant) (map[string]uuid.UUID, error)
}
