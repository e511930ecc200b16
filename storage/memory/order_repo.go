package memory

import (
	"context"
	"sort"

	"fulfillment/pkg/models"
)

type orderRepo struct{ s *Store }

func (r orderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextOrderID++
	order.ID = r.s.nextOrderID
	order.UpdatedAt = order.CreatedAt
	r.s.orders[order.ID] = cloneOrder(order)
	return order, nil
}

func (r orderRepo) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r orderRepo) CompareAndSetStatus(ctx context.Context, change models.StatusChange) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[change.OrderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if o.Status != change.From {
		return nil, &models.StaleStateError{Expected: change.From, Current: o.Status}
	}
	o.Status = change.To
	o.UpdatedAt = change.ChangedAt

	r.s.nextChangeID++
	change.ID = r.s.nextChangeID
	r.s.history[o.ID] = append(r.s.history[o.ID], &change)

	return cloneOrder(o), nil
}

func (r orderRepo) GetActiveDineIn(ctx context.Context, restaurantID int64) ([]*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.Order
	for _, o := range r.s.orders {
		if o.RestaurantID != restaurantID || o.Type != models.OrderTypeDineIn {
			continue
		}
		switch o.Status {
		case models.StatusPending, models.StatusAccepted, models.StatusPreparing, models.StatusServed:
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r orderRepo) GetHistory(ctx context.Context, orderID int64) ([]*models.StatusChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.StatusChange
	for _, c := range r.s.history[orderID] {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	if o.TableNumber != nil {
		n := *o.TableNumber
		cp.TableNumber = &n
	}
	if o.DeliveryLocation != nil {
		loc := *o.DeliveryLocation
		cp.DeliveryLocation = &loc
	}
	return &cp
}
