package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/marketplace/internal/catalog"
)

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var product *catalog.Product

	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		var pr catalog.Product
		err := tx.QueryRow(ctx, `
			SELECT id, seller_id, shop_id, name, description, base_price, has_variants, quantity, available
			  FROM products WHERE id = $1`, id).
			Scan(&pr.ID, &pr.SellerID, &pr.ShopID, &pr.Name, &pr.Description, &pr.BasePrice,
				&pr.HasVariants, &pr.Quantity, &pr.Available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("failed to find product: %w", err)
		}

		pr.Categories, err = p.findCategories(ctx, tx, id)
		if err != nil {
			return err
		}
		pr.Images, err = p.findImages(ctx, tx, id)
		if err != nil {
			return err
		}
		pr.Variants, err = p.findVariants(ctx, tx, id)
		if err != nil {
			return err
		}
		product = &pr
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return product, nil
}

// findCategories loads the variation axes in authoring order. The order
// matters: variant combination tuples are positional over it.
func (p *PgStore) findCategories(ctx context.Context, tx pgx.Tx, productID uuid.UUID) ([]catalog.Category, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, name, vals FROM product_categories WHERE product_id = $1 ORDER BY position`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to find product categories: %w", err)
	}
	defer rows.Close()

	var categories []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Values); err != nil {
			return nil, fmt.Errorf("failed to scan product category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (p *PgStore) findImages(ctx context.Context, tx pgx.Tx, productID uuid.UUID) ([]catalog.Image, error) {
	rows, err := tx.Query(ctx,
		`SELECT uri FROM product_images WHERE product_id = $1 ORDER BY position`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to find product images: %w", err)
	}
	defer rows.Close()

	var images []catalog.Image
	for rows.Next() {
		var img catalog.Image
		if err := rows.Scan(&img.URI); err != nil {
			return nil, fmt.Errorf("failed to scan product image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (p *PgStore) findVariants(ctx context.Context, tx pgx.Tx, productID uuid.UUID) ([]catalog.Variant, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, combination, price, stock, image_url
		  FROM product_variants WHERE product_id = $1 ORDER BY name`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to find variants: %w", err)
	}
	defer rows.Close()

	var variants []catalog.Variant
	for rows.Next() {
		var key uuid.UUID
		var v catalog.Variant
		if err := rows.Scan(&key, &v.Combination, &v.Price, &v.Stock, &v.Image.URI); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		v.ID = catalog.DurableID(key)
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// Save writes the product, replaces its image references, updates and
// creates variants and prunes the ones no longer present, all in one
// transaction.
func (p *PgStore) Save(ctx context.Context, product *catalog.Product, updated, created []catalog.Variant) (map[string]uuid.UUID, error) {
	idMap := make(map[string]uuid.UUID, len(created))

	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO products (id, seller_id, shop_id, name, description, base_price, has_variants, quantity, available)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				base_price = EXCLUDED.base_price,
				has_variants = EXCLUDED.has_variants,
				quantity = EXCLUDED.quantity,
				available = EXCLUDED.available`,
			product.ID, product.SellerID, product.ShopID, product.Name, product.Description,
			product.BasePrice, product.HasVariants, product.Quantity, product.Available)
		if err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}

		if err := p.replaceCategories(ctx, tx, product); err != nil {
			return err
		}
		if err := p.replaceImages(ctx, tx, product); err != nil {
			return err
		}
		if err := p.pruneVariants(ctx, tx, product.ID, updated); err != nil {
			return err
		}

		for _, v := range updated {
			key, _ := v.ID.Durable()
			_, err := tx.Exec(ctx, `
				UPDATE product_variants
				   SET combination = $1, name = $2, price = $3, stock = $4, image_url = $5
				 WHERE id = $6 AND product_id = $7`,
				v.Combination, variantName(v), v.Price, v.Stock, v.Image.URI, key, product.ID)
			if err != nil {
				return fmt.Errorf("failed to update variant %s: %w", key, err)
			}
		}

		for _, v := range created {
			var key uuid.UUID
			err := tx.QueryRow(ctx, `
				INSERT INTO product_variants (id, product_id, combination, name, price, stock, image_url)
				VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
				RETURNING id`,
				product.ID, v.Combination, variantName(v), v.Price, v.Stock, v.Image.URI).Scan(&key)
			if err != nil {
				return fmt.Errorf("failed to create variant %s: %w", variantName(v), err)
			}
			idMap[v.ID.String()] = key
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return idMap, nil
}

func (p *PgStore) replaceCategories(ctx context.Context, tx pgx.Tx, product *catalog.Product) error {
	if _, err := tx.Exec(ctx,
		`DELETE FROM product_categories WHERE product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("failed to clear product categories: %w", err)
	}
	for i, c := range product.Categories {
		_, err := tx.Exec(ctx, `
			INSERT INTO product_categories (id, product_id, name, vals, position)
			VALUES ($1, $2, $3, $4, $5)`,
			c.ID, product.ID, c.Name, c.Values, i)
		if err != nil {
			return fmt.Errorf("failed to save product category %q: %w", c.Name, err)
		}
	}
	return nil
}

func (p *PgStore) replaceImages(ctx context.Context, tx pgx.Tx, product *catalog.Product) error {
	if _, err := tx.Exec(ctx,
		`DELETE FROM product_images WHERE product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("failed to clear product images: %w", err)
	}
	for i, img := range product.Images {
		_, err := tx.Exec(ctx, `
			INSERT INTO product_images (product_id, uri, position) VALUES ($1, $2, $3)`,
			product.ID, img.URI, i)
		if err != nil {
			return fmt.Errorf("failed to save product image: %w", err)
		}
	}
	return nil
}

// pruneVariants deletes stored variants whose id survives in neither the
// update set nor the created set. Created variants have no durable id
// yet, so the kept set is exactly the updated ids.
func (p *PgStore) pruneVariants(ctx context.Context, tx pgx.Tx, productID uuid.UUID, updated []catalog.Variant) error {
	kept := make([]uuid.UUID, 0, len(updated))
	for _, v := range updated {
		key, _ := v.ID.Durable()
		kept = append(kept, key)
	}

	_, err := tx.Exec(ctx, `
		DELETE FROM product_variants
		 WHERE product_id = $1 AND NOT (id = ANY($2))`, productID, kept)
	if err != nil {
		return fmt.Errorf("failed to prune variants: %w", err)
	}
	return nil
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("failed to rollback transaction: %w", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func variantName(v catalog.Variant) string {
	return strings.Join(v.Combination, " / ")
}
