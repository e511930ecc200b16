package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
	"fulfillment/storage"
)

type tableRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewTableRepo(db *pgxpool.Pool, log logger.ILogger) storage.ITableStorage {
	return &tableRepo{db: db, log: log}
}

func (r *tableRepo) Create(ctx context.Context, t *models.Table) (*models.Table, error) {
	query := `
		INSERT INTO restaurant_tables (restaurant_id, number, chairs, base_status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, t.RestaurantID, t.Number, t.Chairs, t.BaseStatus).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.log.Error("failed to create table", logger.Int64("restaurant_id", t.RestaurantID), logger.Int("number", t.Number), logger.Error(err))
		return nil, wrapErr(err)
	}
	return t, nil
}

func (r *tableRepo) Get(ctx context.Context, restaurantID int64, number int) (*models.Table, error) {
	query := `
		SELECT restaurant_id, number, chairs, base_status, created_at, updated_at
		FROM restaurant_tables
		WHERE restaurant_id = $1 AND number = $2
	`
	t, err := scanTable(r.db.QueryRow(ctx, query, restaurantID, number))
	if err != nil {
		return nil, wrapErr(err)
	}
	return t, nil
}

func (r *tableRepo) GetAll(ctx context.Context, restaurantID int64) ([]*models.Table, error) {
	query := `
		SELECT restaurant_id, number, chairs, base_status, created_at, updated_at
		FROM restaurant_tables
		WHERE restaurant_id = $1
		ORDER BY number ASC
	`
	rows, err := r.db.Query(ctx, query, restaurantID)
	if err != nil {
		r.log.Error("failed to list tables", logger.Int64("restaurant_id", restaurantID), logger.Error(err))
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var tables []*models.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		tables = append(tables, t)
	}
	return tables, wrapErr(rows.Err())
}

func (r *tableRepo) UpdateBaseStatus(ctx context.Context, restaurantID int64, number int, status models.TableStatus) (*models.Table, error) {
	query := `
		UPDATE restaurant_tables SET base_status = $3, updated_at = NOW()
		WHERE restaurant_id = $1 AND number = $2
		RETURNING restaurant_id, number, chairs, base_status, created_at, updated_at
	`
	t, err := scanTable(r.db.QueryRow(ctx, query, restaurantID, number, status))
	if err != nil {
		return nil, wrapErr(err)
	}
	return t, nil
}

func scanTable(row pgx.Row) (*models.Table, error) {
	var t models.Table
	if err := row.Scan(&t.RestaurantID, &t.Number, &t.Chairs, &t.BaseStatus, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
