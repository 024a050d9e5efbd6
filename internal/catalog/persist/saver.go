package persist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vendora/marketplace/internal/catalog"
	"github.com/vendora/marketplace/pkg/imaging"
)

// Saver is the persistence adapter for authored products. It owns the
// ordering guarantees of a save: every pending image is uploaded before
// the first store write, a failed upload aborts the whole save, and
// remote images that lost their last reference are removed only after
// the write committed.
type Saver struct {
	store    ProductStore
	uploader imaging.Uploader
	logger   *slog.Logger
}

// NewSaver creates a new Saver.
func NewSaver(store ProductStore, uploader imaging.Uploader, logger *slog.Logger) *Saver {
	return &Saver{
		store:    store,
		uploader: uploader,
		logger:   logger.With("component", "persist"),
	}
}

// Save persists the product together with the ledger's variant state.
// The returned product carries the hosted image URIs and durable ids for
// every variant, including the ones created by this save.
func (s *Saver) Save(ctx context.Context, product *catalog.Product, ledger *catalog.Ledger) (*catalog.Product, error) {
	if err := ledger.Validate(); err != nil {
		return nil, err
	}

	p := *product
	p.Images = append([]catalog.Image(nil), product.Images...)
	p.Categories = ledger.Categories()
	p.Variants = ledger.Variants()

	existing, err := s.existingURIs(ctx, &p)
	if err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	uploaded, err := s.uploadPending(ctx, &p)
	if err != nil {
		return nil, err
	}

	updated, created := partition(p.Variants)
	p.HasVariants = len(p.Variants) > 0
	if p.HasVariants {
		p.Available = anyInStock(p.Variants)
	}

	idMap, err := s.store.Save(ctx, &p, updated, created)
	if err != nil {
		// Nothing was written; the fresh uploads are the only dangling
		// state, so take them back down.
		s.deleteAll(ctx, uploaded)
		return nil, err
	}

	for i, v := range p.Variants {
		if _, durable := v.ID.Durable(); durable {
			continue
		}
		if key, ok := idMap[v.ID.String()]; ok {
			p.Variants[i].ID = catalog.DurableID(key)
		}
	}

	s.deleteAll(ctx, orphaned(existing, &p))
	return &p, nil
}

// existingURIs collects the remote image URIs the stored product currently
// references. A product without an id has never been written.
func (s *Saver) existingURIs(ctx context.Context, p *catalog.Product) (map[string]struct{}, error) {
	uris := make(map[string]struct{})
	if p.ID == uuid.Nil {
		return uris, nil
	}
	stored, err := s.store.FindByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, img := range stored.Images {
		uris[img.URI] = struct{}{}
	}
	for _, v := range stored.Variants {
		if v.Image.URI != "" {
			uris[v.Image.URI] = struct{}{}
		}
	}
	return uris, nil
}

// uploadPending uploads every pending image and swaps in the hosted URI,
// keeping image order. On the first failure it removes what this call
// already uploaded and aborts.
func (s *Saver) uploadPending(ctx context.Context, p *catalog.Product) ([]string, error) {
	var uploaded []string

	upload := func(img *catalog.Image) error {
		if !img.Pending {
			return nil
		}
		uri, err := s.uploader.Upload(ctx, img.Name, img.ContentType, img.Data)
		if err != nil {
			s.deleteAll(ctx, uploaded)
			return fmt.Errorf("resource %q: %w: %v", img.Name, ErrUploadFailure, err)
		}
		uploaded = append(uploaded, uri)
		*img = catalog.Image{URI: uri}
		return nil
	}

	for i := range p.Images {
		if err := upload(&p.Images[i]); err != nil {
			return nil, err
		}
	}
	for i := range p.Variants {
		if err := upload(&p.Variants[i].Image); err != nil {
			return nil, err
		}
	}
	return uploaded, nil
}

// deleteAll removes hosted images best-effort. Failures are logged and
// never propagated; a leaked object is recoverable, a failed save is not.
func (s *Saver) deleteAll(ctx context.Context, uris []string) {
	for _, uri := range uris {
		if err := s.uploader.Delete(ctx, uri); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete hosted image", "uri", uri, "error", err)
		}
	}
}

// orphaned returns the previously referenced URIs the saved product no
// longer uses.
func orphaned(existing map[string]struct{}, p *catalog.Product) []string {
	current := make(map[string]struct{})
	for _, img := range p.Images {
		current[img.URI] = struct{}{}
	}
	for _, v := range p.Variants {
		if v.Image.URI != "" {
			current[v.Image.URI] = struct{}{}
		}
	}

	var gone []string
	for uri := range existing {
		if _, kept := current[uri]; !kept {
			gone = append(gone, uri)
		}
	}
	return gone
}

// partition splits variants into store-known ones to update and locally
// authored ones to create.
func partition(variants []catalog.Variant) (updated, created []catalog.Variant) {
	for _, v := range variants {
		if _, durable := v.ID.Durable(); durable {
			updated = append(updated, v)
		} else {
			created = append(created, v)
		}
	}
	return updated, created
}

func anyInStock(variants []catalog.Variant) bool {
	for _, v := range variants {
		if v.Stock > 0 {
			return true
		}
	}
	return false
}
