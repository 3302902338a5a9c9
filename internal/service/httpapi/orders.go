package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/expirians/storefront/internal/domain"
	"github.com/expirians/storefront/internal/service/checkout"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	defaultOrderListSize = 50
	maxOrderListSize     = 200
)

type createOrderRequest struct {
	CustomerID string             `json:"customer_id"`
	AddressID  string             `json:"address_id"`
	Discount   decimal.Decimal    `json:"discount"`
	Freight    decimal.Decimal    `json:"freight"`
	Items      []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
	Size      string `json:"size"`
}

type patchOrderRequest struct {
	Status string             `json:"status,omitempty"`
	Reason string             `json:"reason,omitempty"`
	Items  []orderItemRequest `json:"items,omitempty"`
}

func toItemRequests(items []orderItemRequest) []checkout.ItemRequest {
	result := make([]checkout.ItemRequest, 0, len(items))
	for _, item := range items {
		result = append(result, checkout.ItemRequest{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			Size:      item.Size,
		})
	}
	return result
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	idemKey := r.Header.Get(idempotencyKeyHeader)
	if idemKey == "" || s.idempotency == nil {
		s.createOrder(w, body)
		return
	}

	if replayed := s.beginIdempotent(w, idemKey, body); replayed {
		return
	}

	// Ответ пишется через буфер, чтобы сохранить его под ключом как есть.
	capture := newResponseCapture(w)
	s.createOrder(capture, body)
	capture.flush()
	s.finishIdempotent(idemKey, capture.body.Bytes(), capture.status)
}

func (s *Server) createOrder(w http.ResponseWriter, body []byte) {
	var req createOrderRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := s.assembler.CreateOrder(checkout.CreateOrderRequest{
		CustomerID: req.CustomerID,
		AddressID:  req.AddressID,
		Discount:   req.Discount,
		Freight:    req.Freight,
		Items:      toItemRequests(req.Items),
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toOrderResponse(order))
}

// beginIdempotent занимает idempotency-key под текущий запрос. Возвращает
// true, если ответ уже отправлен (повтор или конфликт ключа).
func (s *Server) beginIdempotent(w http.ResponseWriter, key string, body []byte) bool {
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])

	_, err := s.idempotency.CreateProcessing(key, hash, time.Now().UTC().Add(s.idemTTL))
	if err == nil {
		return false
	}

	if errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		record, getErr := s.idempotency.Get(key)
		if getErr != nil {
			s.respondDomainError(w, getErr)
			return true
		}
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(record.HTTPStatus)
			_, _ = w.Write(record.ResponseBody)
		default:
			// Первый запрос с этим ключом ещё в полёте.
			s.respondError(w, http.StatusConflict, "request with this idempotency key is still being processed")
		}
		return true
	}

	s.respondDomainError(w, err)
	return true
}

func (s *Server) finishIdempotent(key string, body []byte, status int) {
	var err error
	if status >= 200 && status < 300 {
		err = s.idempotency.MarkDone(key, body, status)
	} else {
		err = s.idempotency.MarkFailed(key, body, status)
	}
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to finalize idempotency record")
	}
}

// responseCapture буферизует ответ, не трогая исходный writer до flush.
type responseCapture struct {
	dst    http.ResponseWriter
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseCapture(dst http.ResponseWriter) *responseCapture {
	return &responseCapture{
		dst:    dst,
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (c *responseCapture) Header() http.Header { return c.header }

func (c *responseCapture) WriteHeader(status int) { c.status = status }

func (c *responseCapture) Write(p []byte) (int, error) { return c.body.Write(p) }

func (c *responseCapture) flush() {
	for key, values := range c.header {
		for _, value := range values {
			c.dst.Header().Add(key, value)
		}
	}
	c.dst.WriteHeader(c.status)
	_, _ = c.dst.Write(c.body.Bytes())
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.Get(r.PathValue("id"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toOrderResponse(order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		s.respondError(w, http.StatusBadRequest, "customer_id query parameter is required")
		return
	}

	limit := defaultOrderListSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > maxOrderListSize {
			parsed = maxOrderListSize
		}
		limit = parsed
	}

	orders, err := s.orders.ListByCustomer(customerID, limit)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	result := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrderResponse(order))
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"orders": result})
}

// handlePatchOrder обслуживает оба изменения заказа: перевод статуса и
// замену позиций. В одном запросе допускается ровно одно из двух.
func (s *Server) handlePatchOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req patchOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case req.Status != "" && len(req.Items) > 0:
		s.respondError(w, http.StatusBadRequest, "status and items cannot be changed in one request")
	case req.Status != "":
		order, err := s.machine.Advance(orderID, domain.OrderStatus(req.Status), req.Reason)
		if err != nil {
			s.respondDomainError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, toOrderResponse(order))
	case len(req.Items) > 0:
		order, err := s.assembler.UpdateItems(orderID, toItemRequests(req.Items))
		if err != nil {
			s.respondDomainError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, toOrderResponse(order))
	default:
		s.respondError(w, http.StatusBadRequest, "either status or items must be provided")
	}
}

func (s *Server) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	if _, err := s.orders.Get(orderID); err != nil {
		s.respondDomainError(w, err)
		return
	}

	changes, err := s.history.List(orderID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	result := make([]statusChangeResponse, 0, len(changes))
	for _, change := range changes {
		result = append(result, statusChangeResponse{
			From:     string(change.From),
			To:       string(change.To),
			Reason:   change.Reason,
			Occurred: change.Occurred,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"history": result})
}
