package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const opTimeout = 5 * time.Second

const productColumns = `id, name, description, image_url, price_minor, stock, version, created_at, updated_at`

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	product.Name = strings.TrimSpace(product.Name)
	product.Version = 1
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		product.ID, product.Name, product.Description, product.ImageURL,
		product.PriceMinor, product.Stock, product.Version, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if constraintName(err) == "products_name_key" {
				return domain.Product{}, domain.ErrProductExists
			}
			return domain.Product{}, domain.ErrAlreadyExists
		}
		return domain.Product{}, unavailable("insert product", err)
	}

	return product, nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, unavailable("get product", err)
	}
	return product, nil
}

func (r *productRepository) List(ctx context.Context, limit int) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM products ORDER BY seq ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list products", err)
	}
	defer rows.Close()

	result := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, unavailable("scan product", err)
		}
		result = append(result, product)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate products", err)
	}
	return result, nil
}

// Update пишет товар только при совпадении версии.
func (r *productRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product.Name = strings.TrimSpace(product.Name)
	product.UpdatedAt = time.Now().UTC()

	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $3,
		    description = $4,
		    image_url = $5,
		    price_minor = $6,
		    stock = $7,
		    version = version + 1,
		    updated_at = $8
		WHERE id = $1 AND version = $2
		RETURNING version, created_at
	`,
		product.ID, product.Version, product.Name, product.Description, product.ImageURL,
		product.PriceMinor, product.Stock, product.UpdatedAt,
	).Scan(&product.Version, &product.CreatedAt)
	if err == nil {
		return product, nil
	}
	if isUniqueViolation(err) {
		return domain.Product{}, domain.ErrProductExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, unavailable("update product", err)
	}

	exists, err := rowExists(ctx, r.db, `SELECT 1 FROM products WHERE id = $1`, product.ID)
	if err != nil {
		return domain.Product{}, unavailable("check product exists", err)
	}
	if !exists {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return domain.Product{}, domain.ErrVersionConflict
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete product", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.ImageURL,
		&p.PriceMinor, &p.Stock, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func rowExists(ctx context.Context, q queryRower, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, err
}

var _ domain.ProductRepository = (*productRepository)(nil)
