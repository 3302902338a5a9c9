package httpapi

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/expirians/storefront/internal/domain"
	"github.com/expirians/storefront/internal/service/address"
	"github.com/expirians/storefront/internal/service/checkout"
	"github.com/expirians/storefront/internal/service/lifecycle"
	"github.com/expirians/storefront/internal/service/review"
)

// Server — HTTP/JSON API витрины: заказы, адреса, отзывы.
type Server struct {
	assembler   *checkout.Assembler
	machine     *lifecycle.Machine
	registry    *address.Registry
	gate        *review.Gate
	orders      domain.OrderRepository
	history     domain.StatusHistoryRepository
	idempotency domain.IdempotencyRepository
	idemTTL     time.Duration
	logger      *log.Entry
}

// Option настраивает Server.
type Option func(*Server)

// WithLogger задаёт logger для HTTP API.
func WithLogger(logger *log.Entry) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIdempotency включает поддержку заголовка Idempotency-Key на
// создании заказа.
func WithIdempotency(repo domain.IdempotencyRepository, ttl time.Duration) Option {
	return func(s *Server) {
		s.idempotency = repo
		if ttl > 0 {
			s.idemTTL = ttl
		}
	}
}

// NewServer создаёт HTTP API поверх сервисов витрины.
func NewServer(
	assembler *checkout.Assembler,
	machine *lifecycle.Machine,
	registry *address.Registry,
	gate *review.Gate,
	orders domain.OrderRepository,
	history domain.StatusHistoryRepository,
	options ...Option,
) *Server {
	s := &Server{
		assembler: assembler,
		machine:   machine,
		registry:  registry,
		gate:      gate,
		orders:    orders,
		history:   history,
		idemTTL:   24 * time.Hour,
		logger:    log.WithField("component", "httpapi"),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Handler возвращает корневой mux API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/orders", s.handleCreateOrder)
	mux.HandleFunc("GET /api/v1/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/v1/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("PATCH /api/v1/orders/{id}", s.handlePatchOrder)
	mux.HandleFunc("GET /api/v1/orders/{id}/history", s.handleOrderHistory)

	mux.HandleFunc("POST /api/v1/addresses", s.handleAddAddress)
	mux.HandleFunc("GET /api/v1/addresses", s.handleListAddresses)
	mux.HandleFunc("PUT /api/v1/addresses/{id}", s.handleUpdateAddress)
	mux.HandleFunc("DELETE /api/v1/addresses/{id}", s.handleDeleteAddress)

	mux.HandleFunc("POST /api/v1/reviews", s.handleSubmitReview)
	mux.HandleFunc("GET /api/v1/reviews", s.handleListReviews)
	mux.HandleFunc("GET /api/v1/reviews/eligibility", s.handleReviewEligibility)

	return s.logRequests(mux)
}

// logRequests — access-лог в стиле остальных компонентов.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("http request")
	})
}
