package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const orderColumns = `id, number, client_id, state, items, unit_prices, total_quantity, total_cost_minor, version, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	items, prices, err := encodeBasket(order.Basket)
	if err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Version = 1

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		order.ID, order.Number, order.ClientID, string(order.State), items, prices,
		order.TotalQuantity, order.TotalCostMinor, order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, domain.ErrAlreadyExists
		}
		return domain.Order{}, unavailable("insert order", err)
	}
	return order, nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, wrapScan("get order", err)
	}
	return order, nil
}

func (r *orderRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]domain.Order, error) {
	return r.list(ctx, `WHERE client_id = $1`, limit, clientID)
}

func (r *orderRepository) List(ctx context.Context, limit int) ([]domain.Order, error) {
	return r.list(ctx, ``, limit)
}

func (r *orderRepository) list(ctx context.Context, where string, limit int, args ...any) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list orders", err)
	}
	defer rows.Close()

	result := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, wrapScan("scan order", err)
		}
		result = append(result, order)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate orders", err)
	}
	return result, nil
}

// Save обновляет заказ при совпадении версии.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	items, prices, err := encodeBasket(order.Basket)
	if err != nil {
		return domain.Order{}, err
	}
	order.UpdatedAt = time.Now().UTC()

	err = r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET state = $3,
		    items = $4,
		    unit_prices = $5,
		    total_quantity = $6,
		    total_cost_minor = $7,
		    version = version + 1,
		    updated_at = $8
		WHERE id = $1 AND version = $2
		RETURNING version, created_at
	`,
		order.ID, order.Version, string(order.State), items, prices,
		order.TotalQuantity, order.TotalCostMinor, order.UpdatedAt,
	).Scan(&order.Version, &order.CreatedAt)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, unavailable("save order", err)
	}

	exists, err := rowExists(ctx, r.db, `SELECT 1 FROM orders WHERE id = $1`, order.ID)
	if err != nil {
		return domain.Order{}, unavailable("check order exists", err)
	}
	if !exists {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return domain.Order{}, domain.ErrVersionConflict
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete order", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// errDecode отличает повреждённые данные от ошибок драйвера.
type errDecode struct{ err error }

func (e errDecode) Error() string { return e.err.Error() }
func (e errDecode) Unwrap() error { return e.err }

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order          domain.Order
		state          string
		items, prices  []byte
		totalQ, totalC int64
	)
	if err := row.Scan(
		&order.ID, &order.Number, &order.ClientID, &state, &items, &prices,
		&totalQ, &totalC, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	order.State = domain.OrderState(state)
	if !order.State.Valid() {
		return domain.Order{}, errDecode{fmt.Errorf("order %s: unknown state %q", order.ID, state)}
	}
	basket, err := decodeBasket(items, prices, totalQ, totalC)
	if err != nil {
		return domain.Order{}, errDecode{fmt.Errorf("order %s: %w", order.ID, err)}
	}
	order.Basket = basket
	return order, nil
}

func wrapScan(op string, err error) error {
	var decodeErr errDecode
	if errors.As(err, &decodeErr) {
		return fmt.Errorf("%s: %w", op, decodeErr.err)
	}
	return unavailable(op, err)
}

var _ domain.OrderRepository = (*orderRepository)(nil)
