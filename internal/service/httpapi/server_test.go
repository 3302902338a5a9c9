package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expirians/storefront/internal/domain"
	"github.com/expirians/storefront/internal/service/address"
	"github.com/expirians/storefront/internal/service/checkout"
	"github.com/expirians/storefront/internal/service/lifecycle"
	"github.com/expirians/storefront/internal/service/postal"
	"github.com/expirians/storefront/internal/service/review"
	"github.com/expirians/storefront/internal/storage/memory"
)

type env struct {
	server    *httptest.Server
	orders    domain.OrderRepository
	addresses domain.AddressRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()

	products := memory.NewProductRepository()
	orders := memory.NewOrderRepository()
	addresses := memory.NewAddressRepository()
	history := memory.NewStatusHistoryRepository()
	outbox := memory.NewOutboxRepository()
	reviews := memory.NewReviewRepository()
	idempotency := memory.NewIdempotencyRepository()

	now := time.Now().UTC()
	require.NoError(t, products.Create(domain.Product{
		ID:        "prod-1",
		Name:      "Shirt",
		Price:     decimal.RequireFromString("49.90"),
		Stock:     10,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, addresses.Create(domain.Address{
		ID:           "addr-1",
		CustomerID:   "cust-1",
		Description:  "Home",
		PostalCode:   "01310-100",
		Street:       "Av. Paulista",
		Number:       "1000",
		Neighborhood: "Bela Vista",
		City:         "Sao Paulo",
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	assembler := checkout.NewAssemblerWithoutMetrics(orders, products, addresses, products, history, outbox, nil)
	machine := lifecycle.NewMachineWithoutMetrics(orders, products, history, outbox, nil)
	registry := address.NewRegistry(addresses, postal.NewMockLookup(), nil)
	gate := review.NewGateWithoutMetrics(reviews, orders, outbox, nil)

	api := NewServer(assembler, machine, registry, gate, orders, history,
		WithIdempotency(idempotency, time.Hour))

	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)

	return &env{server: server, orders: orders, addresses: addresses}
}

func (e *env) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func createOrderBody() map[string]any {
	return map[string]any{
		"customer_id": "cust-1",
		"address_id":  "addr-1",
		"discount":    "0",
		"freight":     "10.00",
		"items": []map[string]any{
			{"product_id": "prod-1", "qty": 2, "size": "M"},
		},
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/api/v1/orders", createOrderBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var got orderResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, string(domain.OrderStatusPending), got.Status)
	assert.Equal(t, "109.8", got.Total.String())
	assert.Len(t, got.Items, 1)
}

func TestCreateOrderValidationEndpoint(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
		"items": []map[string]any{},
	}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var got errorResponse
	require.NoError(t, json.Unmarshal(body, &got))
	fields := make([]string, 0, len(got.Fields))
	for _, fe := range got.Fields {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"customer_id", "address_id", "items"}, fields)
}

func TestCreateOrderInsufficientStockEndpoint(t *testing.T) {
	e := newEnv(t)

	body := createOrderBody()
	body["items"] = []map[string]any{{"product_id": "prod-1", "qty": 11}}

	resp, _ := e.do(t, http.MethodPost, "/api/v1/orders", body, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateOrderIdempotencyReplay(t *testing.T) {
	e := newEnv(t)
	headers := map[string]string{"Idempotency-Key": "key-1"}

	resp1, body1 := e.do(t, http.MethodPost, "/api/v1/orders", createOrderBody(), headers)
	require.Equal(t, http.StatusCreated, resp1.StatusCode)

	resp2, body2 := e.do(t, http.MethodPost, "/api/v1/orders", createOrderBody(), headers)
	require.Equal(t, http.StatusCreated, resp2.StatusCode)
	assert.JSONEq(t, string(body1), string(body2))

	// Повтор не создал второй заказ и не тронул сток ещё раз.
	orders, err := e.orders.ListByCustomer("cust-1", 10)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCreateOrderIdempotencyKeyReuse(t *testing.T) {
	e := newEnv(t)
	headers := map[string]string{"Idempotency-Key": "key-1"}

	resp1, _ := e.do(t, http.MethodPost, "/api/v1/orders", createOrderBody(), headers)
	require.Equal(t, http.StatusCreated, resp1.StatusCode)

	other := createOrderBody()
	other["freight"] = "20.00"
	resp2, _ := e.do(t, http.MethodPost, "/api/v1/orders", other, headers)
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)
}

func TestGetOrderEndpoint(t *testing.T) {
	e := newEnv(t)

	_, created := e.do(t, http.MethodPost, "/api/v1/orders", createOrderBody(), nil)
	var order orderResponse
	require.NoError(t, json.Unmarshal(created, &order))

	resp, body := e.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got orderResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, order.ID, got.ID)

	resp, _ = e.do(t, http.MethodGet, "/api/v1/orders/no-such-order", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPatchOrderStatusEndpoint(t *testing.T) {
	e := newEnv(t)

	_, created := e.do(t, http.MethodPost, "/api/v1/orders", createOrderBody(), nil)
	var order orderResponse
	require.NoError(t, json.Unmarshal(created, &order))

	resp, body := e.do(t, http.MethodPatch, "/api/v1/orders/"+order.ID, map[string]any{
		"status": "Confirmado",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got orderResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Confirmado", got.Status)

	// Прыжок через шаг не допускается.
	resp, _ = e.do(t, http.MethodPatch, "/api/v1/orders/"+order.ID, map[string]any{
		"status": "Entregue",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPatchOrderItemsEndpoint(t *testing.T) {
	e := newEnv(t)

	_, created := e.do(t, http.MethodPost, "/api/v1/orders", createOrderBody(), nil)
	var order orderResponse
	require.NoError(t, json.Unmarshal(created, &order))

	resp, body := e.do(t, http.MethodPatch, "/api/v1/orders/"+order.ID, map[string]any{
		"items": []map[string]any{{"product_id": "prod-1", "qty": 3}},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got orderResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, int32(3), got.Items[0].Qty)
}

func TestPatchOrderRejectsMixedBody(t *testing.T) {
	e := newEnv(t)

	_, created := e.do(t, http.MethodPost, "/api/v1/orders", createOrderBody(), nil)
	var order orderResponse
	require.NoError(t, json.Unmarshal(created, &order))

	resp, _ := e.do(t, http.MethodPatch, "/api/v1/orders/"+order.ID, map[string]any{
		"status": "Confirmado",
		"items":  []map[string]any{{"product_id": "prod-1", "qty": 1}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrderHistoryEndpoint(t *testing.T) {
	e := newEnv(t)

	_, created := e.do(t, http.MethodPost, "/api/v1/orders", createOrderBody(), nil)
	var order orderResponse
	require.NoError(t, json.Unmarshal(created, &order))

	for _, status := range []string{"Confirmado", "EmPreparacao"} {
		resp, _ := e.do(t, http.MethodPatch, "/api/v1/orders/"+order.ID, map[string]any{"status": status}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := e.do(t, http.MethodGet, "/api/v1/orders/"+order.ID+"/history", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		History []statusChangeResponse `json:"history"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.History, 3)
	assert.Equal(t, "Pendente", got.History[0].To)
	assert.Equal(t, "EmPreparacao", got.History[2].To)
}

func TestAddressEndpoints(t *testing.T) {
	e := newEnv(t)

	newAddress := func(description string) map[string]any {
		return map[string]any{
			"customer_id":  "cust-2",
			"description":  description,
			"postal_code":  "20040-020",
			"street":       "Av. Rio Branco",
			"number":       "1",
			"neighborhood": "Centro",
			"city":         "Rio de Janeiro",
		}
	}

	resp, body := e.do(t, http.MethodPost, "/api/v1/addresses", newAddress("Home"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var added addressResponse
	require.NoError(t, json.Unmarshal(body, &added))

	// Повтор описания в пределах клиента.
	resp, _ = e.do(t, http.MethodPost, "/api/v1/addresses", newAddress("Home"), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Четвёртый адрес сверх лимита.
	for _, d := range []string{"Work", "Parents"} {
		resp, _ = e.do(t, http.MethodPost, "/api/v1/addresses", newAddress(d), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodPost, "/api/v1/addresses", newAddress("Beach house"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Обновление и удаление.
	update := newAddress("Home base")
	resp, _ = e.do(t, http.MethodPut, "/api/v1/addresses/"+added.ID, update, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/api/v1/addresses/"+added.ID+"?customer_id=cust-2", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/api/v1/addresses?customer_id=cust-2", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Addresses []addressResponse `json:"addresses"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Addresses, 2)
}

func TestReviewEndpoints(t *testing.T) {
	e := newEnv(t)

	_, created := e.do(t, http.MethodPost, "/api/v1/orders", createOrderBody(), nil)
	var order orderResponse
	require.NoError(t, json.Unmarshal(created, &order))

	reviewBody := map[string]any{
		"product_id":  "prod-1",
		"customer_id": "cust-1",
		"rating":      5,
		"comment":     "Great fit",
	}

	// До доставки отзыв не принимается.
	resp, _ := e.do(t, http.MethodPost, "/api/v1/reviews", reviewBody, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for _, status := range []string{"Confirmado", "EmPreparacao", "Enviado", "Entregue"} {
		resp, _ := e.do(t, http.MethodPatch, "/api/v1/orders/"+order.ID, map[string]any{"status": status}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := e.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/reviews/eligibility?customer_id=%s&product_id=%s", "cust-1", "prod-1"), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var eligibility eligibilityResponse
	require.NoError(t, json.Unmarshal(body, &eligibility))
	assert.True(t, eligibility.Eligible)

	resp, body = e.do(t, http.MethodPost, "/api/v1/reviews", reviewBody, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	// Второй отзыв на ту же пару клиент-товар.
	resp, _ = e.do(t, http.MethodPost, "/api/v1/reviews", reviewBody, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Право на отзыв даёт доставленная покупка, отправленный отзыв его
	// не отменяет, но помечается отдельно.
	resp, body = e.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/reviews/eligibility?customer_id=%s&product_id=%s", "cust-1", "prod-1"), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &eligibility))
	assert.True(t, eligibility.Eligible)
	assert.True(t, eligibility.AlreadyReviewed)

	resp, body = e.do(t, http.MethodGet, "/api/v1/reviews?product_id=prod-1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Reviews []reviewResponse `json:"reviews"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Reviews, 1)
}
