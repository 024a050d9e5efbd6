package persist

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vendora/marketplace/internal/catalog"
)

// ProductService is the authoring-facing product API.
type ProductService interface {
	// FindByID returns a product for display. Reads carry no ownership check.
	FindByID(ctx context.Context, id uuid.UUID) (*ProductDto, error)

	// Save validates and persists the authored product state. Only the
	// owning seller may save an existing product.
	Save(ctx context.Context, actorID uuid.UUID, dto ProductSaveDto) (*ProductDto, error)
}

// Service implements ProductService.
type Service struct {
	store  ProductStore
	saver  *Saver
	logger *slog.Logger
}

// NewService creates a new product service.
func NewService(store ProductStore, saver *Saver, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		saver:  saver,
		logger: logger.With("component", "catalog"),
	}
}

// ProductSaveDto is the authored product state submitted on save. A nil ID
// creates a new product.
type ProductSaveDto struct {
	ID          *uuid.UUID    `json:"id,omitempty"`
	ShopID      uuid.UUID     `json:"shop_id" validate:"required"`
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description" validate:"max=5000"`
	BasePrice   int64         `json:"base_price" validate:"required,gt=0"`
	Quantity    int32         `json:"quantity" validate:"gte=0"`
	Available   bool          `json:"available"`
	Categories  []CategoryDto `json:"categories" validate:"dive"`
	Variants    []VariantDto  `json:"variants" validate:"dive"`
	Images      []ImageDto    `json:"images" validate:"dive"`
}

type CategoryDto struct {
	ID     uuid.UUID `json:"id" validate:"required"`
	Name   string    `json:"name" validate:"required,max=100"`
	Values []string  `json:"values" validate:"required,min=1"`
}

// VariantDto carries one variant row. ID is the durable uuid for stored
// variants, or the ephemeral token the client was handed while authoring;
// an empty ID means a brand-new variant.
type VariantDto struct {
	ID          string    `json:"id,omitempty"`
	Combination []string  `json:"combination" validate:"required,min=1"`
	Price       int64     `json:"price" validate:"required,gt=0"`
	Stock       int32     `json:"stock" validate:"gte=0"`
	Image       *ImageDto `json:"image,omitempty"`
}

// ImageDto is either a hosted URI or an inline pending upload.
type ImageDto struct {
	URI         string `json:"uri,omitempty"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// ProductDto is the read model returned by the service.
type ProductDto struct {
	ID          uuid.UUID        `json:"id"`
	SellerID    uuid.UUID        `json:"seller_id"`
	ShopID      uuid.UUID        `json:"shop_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	BasePrice   int64            `json:"base_price"`
	HasVariants bool             `json:"has_variants"`
	Quantity    int32            `json:"quantity"`
	Available   bool             `json:"available"`
	Categories  []CategoryDto    `json:"categories,omitempty"`
	Variants    []VariantReadDto `json:"variants,omitempty"`
	Images      []string         `json:"images,omitempty"`
}

type VariantReadDto struct {
	ID          uuid.UUID `json:"id"`
	Combination []string  `json:"combination"`
	Price       int64     `json:"price"`
	Stock       int32     `json:"stock"`
	ImageURI    string    `json:"image_uri,omitempty"`
}

func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*ProductDto, error) {
	product, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProductDto(product), nil
}

func (s *Service) Save(ctx context.Context, actorID uuid.UUID, dto ProductSaveDto) (*ProductDto, error) {
	product := catalog.Product{
		SellerID:    actorID,
		ShopID:      dto.ShopID,
		Name:        dto.Name,
		Description: dto.Description,
		BasePrice:   dto.BasePrice,
		Quantity:    dto.Quantity,
		Available:   dto.Available,
		Images:      toImages(dto.Images),
	}

	if dto.ID != nil {
		stored, err := s.store.FindByID(ctx, *dto.ID)
		if err != nil {
			return nil, err
		}
		if stored.SellerID != actorID {
			return nil, ErrAccessDenied
		}
		product.ID = stored.ID
		product.SellerID = stored.SellerID
	}

	ledger := catalog.NewLedger(toCategories(dto.Categories), toVariants(dto.Variants))
	saved, err := s.saver.Save(ctx, &product, ledger)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Product saved", "product_id", saved.ID, "variants", len(saved.Variants))
	return toProductDto(saved), nil
}

func toCategories(dtos []CategoryDto) []catalog.Category {
	out := make([]catalog.Category, len(dtos))
	for i, d := range dtos {
		out[i] = catalog.Category{ID: d.ID, Name: d.Name, Values: d.Values}
	}
	return out
}

func toVariants(dtos []VariantDto) []catalog.Variant {
	out := make([]catalog.Variant, len(dtos))
	for i, d := range dtos {
		id := catalog.EphemeralID()
		if key, err := uuid.Parse(d.ID); err == nil {
			id = catalog.DurableID(key)
		}
		v := catalog.Variant{ID: id, Combination: d.Combination, Price: d.Price, Stock: d.Stock}
		if d.Image != nil {
			v.Image = toImage(*d.Image)
		}
		out[i] = v
	}
	return out
}

func toImages(dtos []ImageDto) []catalog.Image {
	out := make([]catalog.Image, len(dtos))
	for i, d := range dtos {
		out[i] = toImage(d)
	}
	return out
}

func toImage(d ImageDto) catalog.Image {
	if d.URI != "" {
		return catalog.Image{URI: d.URI}
	}
	return catalog.Image{Pending: true, Name: d.Name, ContentType: d.ContentType, Data: d.Data}
}

func toProductDto(p *catalog.Product) *ProductDto {
	dto := &ProductDto{
		ID:          p.ID,
		SellerID:    p.SellerID,
		ShopID:      p.ShopID,
		Name:        p.Name,
		Description: p.Description,
		BasePrice:   p.BasePrice,
		HasVariants: p.HasVariants,
		Quantity:    p.Quantity,
		Available:   p.Available,
	}
	for _, c := range p.Categories {
		dto.Categories = append(dto.Categories, CategoryDto{ID: c.ID, Name: c.Name, Values: c.Values})
	}
	for _, v := range p.Variants {
		key, _ := v.ID.Durable()
		dto.Variants = append(dto.Variants, VariantReadDto{
			ID:          key,
			Combination: v.Combination,
			Price:       v.Price,
			Stock:       v.Stock,
			ImageURI:    v.Image.URI,
		})
	}
	for _, img := range p.Images {
		dto.Images = append(dto.Images, img.URI)
	}
	return dto
}
