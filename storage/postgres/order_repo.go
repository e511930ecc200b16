package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
	"fulfillment/storage"
)

var _ storage.IStorage = (*Store)(nil)

const orderColumns = `id, customer_id, restaurant_id, order_type, status, items, table_number, delivery_location,
		total, tip_amount, final_total, created_at, updated_at`

type orderRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewOrderRepo(db *pgxpool.Pool, log logger.ILogger) storage.IOrderStorage {
	return &orderRepo{db: db, log: log}
}

func (r *orderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, err
	}
	var location []byte
	if order.DeliveryLocation != nil {
		if location, err = json.Marshal(order.DeliveryLocation); err != nil {
			return nil, err
		}
	}

	query := `
		INSERT INTO orders (customer_id, restaurant_id, order_type, status, items, table_number, delivery_location,
		                    total, tip_amount, final_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id
	`
	err = r.db.QueryRow(ctx, query,
		order.CustomerID,
		order.RestaurantID,
		order.Type,
		order.Status,
		items,
		order.TableNumber,
		location,
		order.Total,
		order.TipAmount,
		order.FinalTotal,
		order.CreatedAt,
	).Scan(&order.ID)

	if err != nil {
		r.log.Error("failed to create order", logger.Error(err))
		return nil, wrapErr(err)
	}
	order.UpdatedAt = order.CreatedAt

	return order, nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.Error("failed to get order by id", logger.Int64("id", id), logger.Error(err))
		}
		return nil, wrapErr(err)
	}
	return order, nil
}

func (r *orderRepo) CompareAndSetStatus(ctx context.Context, change models.StatusChange) (*models.Order, error) {
	// One statement: the conditional update and its log row commit together.
	query := `
		WITH upd AS (
			UPDATE orders SET status = $3, updated_at = $4
			WHERE id = $1 AND status = $2
			RETURNING ` + orderColumns + `
		), log AS (
			INSERT INTO order_status_log (order_id, from_status, to_status, actor_role, actor_id, changed_at)
			SELECT id, $2, $3, $5, $6, $4 FROM upd
		)
		SELECT ` + orderColumns + ` FROM upd
	`
	order, err := scanOrder(r.db.QueryRow(ctx, query,
		change.OrderID,
		change.From,
		change.To,
		change.ChangedAt,
		change.ActorRole,
		change.ActorID,
	))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.Error("failed to compare and set order status", logger.Int64("id", change.OrderID), logger.Error(err))
		return nil, wrapErr(err)
	}

	var current models.OrderStatus
	err = r.db.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, change.OrderID).Scan(&current)
	if err != nil {
		return nil, wrapErr(err)
	}
	return nil, &models.StaleStateError{Expected: change.From, Current: current}
}

func (r *orderRepo) GetActiveDineIn(ctx context.Context, restaurantID int64) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE restaurant_id = $1
		  AND order_type = 'dine_in'
		  AND status IN ('pending', 'accepted', 'preparing', 'served')
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, restaurantID)
	if err != nil {
		r.log.Error("failed to get active dine-in orders", logger.Int64("restaurant_id", restaurantID), logger.Error(err))
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		orders = append(orders, o)
	}
	return orders, wrapErr(rows.Err())
}

func (r *orderRepo) GetHistory(ctx context.Context, orderID int64) ([]*models.StatusChange, error) {
	query := `
		SELECT id, order_id, from_status, to_status, actor_role, actor_id, changed_at
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var history []*models.StatusChange
	for rows.Next() {
		var c models.StatusChange
		if err := rows.Scan(&c.ID, &c.OrderID, &c.From, &c.To, &c.ActorRole, &c.ActorID, &c.ChangedAt); err != nil {
			return nil, wrapErr(err)
		}
		history = append(history, &c)
	}
	return history, wrapErr(rows.Err())
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o        models.Order
		items    []byte
		location []byte
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.RestaurantID, &o.Type, &o.Status, &items, &o.TableNumber, &location,
		&o.Total, &o.TipAmount, &o.FinalTotal, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	if location != nil {
		o.DeliveryLocation = &models.DeliveryLocation{}
		if err := json.Unmarshal(location, o.DeliveryLocation); err != nil {
			return nil, err
		}
	}
	return &o, nil
}
