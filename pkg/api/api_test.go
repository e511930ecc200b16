package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment/pkg/auth"
	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
	"fulfillment/pkg/notify"
	"fulfillment/service"
	"fulfillment/storage/memory"
)

var (
	owner    = models.Actor{Role: models.RoleRestaurantOwner, ID: 1, RestaurantID: 10}
	waiter   = models.Actor{Role: models.RoleWaiter, ID: 2, RestaurantID: 10}
	customer = models.Actor{Role: models.RoleCustomer, ID: 3}
	courier  = models.Actor{Role: models.RoleCourier, ID: 4}
	courier2 = models.Actor{Role: models.RoleCourier, ID: 5}
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	signer *auth.Signer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logger.NewNop()
	stg := memory.New()
	svc := service.New(stg, notify.NewAsync(log, time.Second), log)
	signer := auth.NewSigner("test-secret", time.Hour)
	return &testAPI{
		t:      t,
		router: NewRouter(svc, stg, signer, log, Options{PollInterval: 20 * time.Millisecond}),
		signer: signer,
	}
}

func (a *testAPI) token(actor models.Actor) string {
	a.t.Helper()
	token, err := a.signer.GenerateToken(actor)
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) do(method, path string, actor *models.Actor, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(*actor))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (a *testAPI) createDeliveryOrder() models.Order {
	a.t.Helper()
	w := a.do(http.MethodPost, "/orders", &customer, gin.H{
		"restaurant_id": 10,
		"order_type":    "delivery",
		"items":         []gin.H{{"dish_id": 1, "name": "pizza", "unit_price": 2000, "quantity": 2}},
		"delivery_location": gin.H{
			"address":     "5 Elm St",
			"coordinates": gin.H{"lat": 41.3, "lng": 69.2},
		},
		"tip_amount": 100,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Order](a.t, w)
}

func (a *testAPI) move(orderID int64, actor models.Actor, statuses ...string) {
	a.t.Helper()
	for _, s := range statuses {
		w := a.do(http.MethodPost, fmt.Sprintf("/orders/%d/transitions", orderID), &actor, gin.H{"status": s})
		require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestAuthentication(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodGet, "/orders/1", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderFlow(t *testing.T) {
	a := newTestAPI(t)
	o := a.createDeliveryOrder()
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, int64(4100), o.FinalTotal)

	w := a.do(http.MethodGet, fmt.Sprintf("/orders/%d", o.ID), &customer, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, fmt.Sprintf("/orders/%d", o.ID), &models.Actor{Role: models.RoleCustomer, ID: 99}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, fmt.Sprintf("/orders/%d/transitions", o.ID), &customer, gin.H{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, fmt.Sprintf("/orders/%d/transitions", o.ID), &owner, gin.H{"status": "preparing"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", decode[errorResponse](t, w).Error)

	a.move(o.ID, owner, "accepted")

	w = a.do(http.MethodPost, fmt.Sprintf("/orders/%d/transitions", o.ID), &owner, gin.H{"status": "accepted"})
	require.Equal(t, http.StatusConflict, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, "stale_state", resp.Error)
	assert.Equal(t, models.StatusAccepted, resp.CurrentStatus)

	w = a.do(http.MethodPost, fmt.Sprintf("/orders/%d/transitions", o.ID), &owner, gin.H{"status": "accepted", "from": "pending"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.StatusAccepted, decode[errorResponse](t, w).CurrentStatus)

	w = a.do(http.MethodPost, fmt.Sprintf("/orders/%d/transitions", o.ID), &owner, gin.H{"status": "preparing"})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[models.TransitionResult](t, w)
	assert.Equal(t, models.StatusPreparing, res.Status)

	w = a.do(http.MethodGet, fmt.Sprintf("/orders/%d/history", o.ID), &owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.StatusChange](t, w), 2)
}

func TestCreateOrderValidation(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodPost, "/orders", &customer, gin.H{
		"restaurant_id": 10,
		"order_type":    "takeaway",
		"items":         []gin.H{{"dish_id": 1, "unit_price": 100, "quantity": 1}},
		"table_number":  2,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decode[errorResponse](t, w).Error)

	w = a.do(http.MethodPost, "/orders", &customer, "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/orders/abc", &customer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/orders/12345", &customer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLocationFlow(t *testing.T) {
	a := newTestAPI(t)
	o := a.createDeliveryOrder()
	base := fmt.Sprintf("/orders/%d/location", o.ID)
	a.move(o.ID, owner, "accepted", "preparing")

	w := a.do(http.MethodPost, base+"/session", &courier, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPost, base+"/session", &courier2, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "session_conflict", decode[errorResponse](t, w).Error)

	w = a.do(http.MethodGet, base, &customer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	at := time.Now().UTC().Truncate(time.Millisecond)
	w = a.do(http.MethodPost, base+"/samples", &courier, gin.H{"lat": 41.31, "lng": 69.27, "sampled_at": at})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = a.do(http.MethodPost, base+"/samples", &courier, gin.H{"lat": 40.0, "lng": 69.0, "sampled_at": at.Add(-time.Minute)})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(http.MethodGet, base, &customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 41.31, decode[models.LocationSample](t, w).Lat)

	a.move(o.ID, owner, "on_the_way")
	a.move(o.ID, courier, "delivered")

	w = a.do(http.MethodGet, base+"/session", &customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sess := decode[models.LocationSession](t, w)
	assert.False(t, sess.Active)
	assert.Equal(t, models.StopOrderClosed, sess.StopReason)

	w = a.do(http.MethodPost, base+"/samples", &courier, gin.H{"lat": 41.0, "lng": 69.0, "sampled_at": at.Add(time.Minute)})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no_active_session", decode[errorResponse](t, w).Error)
}

func TestStopSessionWithReason(t *testing.T) {
	a := newTestAPI(t)
	o := a.createDeliveryOrder()
	base := fmt.Sprintf("/orders/%d/location/session", o.ID)

	w := a.do(http.MethodPost, base, &courier, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodDelete, base, &courier, gin.H{"reason": "permission_denied"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sess := decode[models.LocationSession](t, w)
	assert.Equal(t, models.StopPermissionDenied, sess.StopReason)

	w = a.do(http.MethodDelete, base+"?reason=manual", &courier, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTables(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodPost, "/restaurants/10/tables", &owner, gin.H{"number": 1, "chairs": 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/restaurants/10/tables", &owner, gin.H{"number": 2, "chairs": 12})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/orders", &customer, gin.H{
		"restaurant_id": 10,
		"order_type":    "dine_in",
		"items":         []gin.H{{"dish_id": 1, "unit_price": 100, "quantity": 1}},
		"table_number":  1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/restaurants/10/tables", &customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodGet, "/restaurants/10/tables", &waiter, nil)
	require.Equal(t, http.StatusOK, w.Code)
	views := decode[[]models.TableView](t, w)
	require.Len(t, views, 1)
	assert.Equal(t, models.TableOccupied, views[0].DisplayStatus)

	w = a.do(http.MethodPut, "/restaurants/10/tables/1/status", &owner, gin.H{"base_status": "unavailable"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPut, "/restaurants/10/tables/1/status", &waiter, gin.H{"base_status": "unavailable"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TableUnavailable, decode[models.TableView](t, w).DisplayStatus)

	w = a.do(http.MethodPut, "/restaurants/10/tables/x/status", &waiter, gin.H{"base_status": "available"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStream(t *testing.T) {
	a := newTestAPI(t)
	o := a.createDeliveryOrder()
	base := fmt.Sprintf("/orders/%d/location", o.ID)

	w := a.do(http.MethodPost, base+"/session", &courier, nil)
	require.Equal(t, http.StatusOK, w.Code)

	srv := httptest.NewServer(a.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+base+"/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+a.token(customer))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	w = a.do(http.MethodPost, base+"/samples", &courier, gin.H{"lat": 12.5, "lng": 34.5, "sampled_at": time.Now().UTC()})
	require.Equal(t, http.StatusNoContent, w.Code)

	scanner := bufio.NewScanner(resp.Body)
	var events []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			events = append(events, strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		}
		if strings.HasPrefix(line, "data:") && strings.Contains(line, "12.5") {
			break
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"location"}, events)

	w = a.do(http.MethodDelete, base+"/session", &courier, nil)
	require.Equal(t, http.StatusOK, w.Code)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			assert.Equal(t, "closed", strings.TrimSpace(strings.TrimPrefix(line, "event:")))
			return
		}
	}
	t.Fatal("stream ended without a closed event")
}
