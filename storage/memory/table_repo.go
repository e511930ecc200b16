package memory

import (
	"context"
	"sort"
	"time"

	"fulfillment/pkg/models"
)

type tableRepo struct{ s *Store }

func (r tableRepo) Create(ctx context.Context, t *models.Table) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := tableKey{t.RestaurantID, t.Number}
	if _, ok := r.s.tables[key]; ok {
		return nil, models.Invalid("number", "already exists")
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	r.s.tables[key] = &cp
	return t, nil
}

func (r tableRepo) Get(ctx context.Context, restaurantID int64, number int) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tables[tableKey{restaurantID, number}]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r tableRepo) GetAll(ctx context.Context, restaurantID int64) ([]*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.Table
	for k, t := range r.s.tables {
		if k.restaurantID == restaurantID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r tableRepo) UpdateBaseStatus(ctx context.Context, restaurantID int64, number int, status models.TableStatus) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tables[tableKey{restaurantID, number}]
	if !ok {
		return nil, models.ErrNotFound
	}
	t.BaseStatus = status
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, nil
}
