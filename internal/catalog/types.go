// Package catalog implements product authoring: variant categories, the
// generated variant set, and the in-memory ledger that tracks both until an
// explicit save.
package catalog

import (
	"github.com/google/uuid"
)

// Category is a named axis of product variation, e.g. "Size" with values
// S, M, L. Category names are unique within a product (case-sensitive) and
// values are non-empty and deduplicated.
type Category struct {
	ID     uuid.UUID
	Name   string
	Values []string
}

// VariantID distinguishes variants that already live in the backing store
// (durable, store-assigned key) from ones authored locally and not yet
// persisted (ephemeral token). The distinction drives the create-vs-update
// path on save.
type VariantID struct {
	key   uuid.UUID
	token string
}

// DurableID wraps a store-assigned key.
func DurableID(key uuid.UUID) VariantID {
	return VariantID{key: key}
}

// EphemeralID generates a fresh local identifier for a not-yet-persisted variant.
func EphemeralID() VariantID {
	return VariantID{token: "tmp-" + uuid.NewString()}
}

// Durable returns the store key and true when the id is store-assigned.
func (id VariantID) Durable() (uuid.UUID, bool) {
	if id.token != "" {
		return uuid.Nil, false
	}
	return id.key, true
}

func (id VariantID) String() string {
	if id.token != "" {
		return id.token
	}
	return id.key.String()
}

// IsZero reports whether the id carries neither a key nor a token.
func (id VariantID) IsZero() bool {
	return id.token == "" && id.key == uuid.Nil
}

// Variant is one sellable configuration of a product: one value per
// category, in category order, with its own price, stock and image.
type Variant struct {
	ID          VariantID
	Combination []string
	Price       int64
	Stock       int32
	Image       Image
}

// Image is either a remote URI already hosted by the image service, or a
// pending local resource that still has to be uploaded on save. Name is the
// caller-supplied resource name of a pending image.
type Image struct {
	URI         string
	Pending     bool
	Name        string
	ContentType string
	Data        []byte
}

// Product is the authored product record. When HasVariants is set the
// product-level Quantity is not authoritative; availability derives from
// the variant stocks.
type Product struct {
	ID          uuid.UUID
	SellerID    uuid.UUID
	ShopID      uuid.UUID
	Name        string
	Description string
	BasePrice   int64
	HasVariants bool
	Quantity    int32
	Available   bool
	Categories  []Category
	Variants    []Variant
	Images      []Image
}
