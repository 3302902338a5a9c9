package httpapi

import (
	"net/http"

	"github.com/expirians/storefront/internal/domain"
)

type submitReviewRequest struct {
	ProductID  string `json:"product_id"`
	CustomerID string `json:"customer_id"`
	Rating     int32  `json:"rating"`
	Comment    string `json:"comment"`
}

type eligibilityResponse struct {
	Eligible        bool `json:"eligible"`
	AlreadyReviewed bool `json:"already_reviewed"`
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var req submitReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	submitted, err := s.gate.SubmitReview(domain.Review{
		ProductID:  req.ProductID,
		CustomerID: req.CustomerID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toReviewResponse(submitted))
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		s.respondError(w, http.StatusBadRequest, "product_id query parameter is required")
		return
	}

	reviews, err := s.gate.ListByProduct(productID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	result := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		result = append(result, toReviewResponse(review))
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"reviews": result})
}

func (s *Server) handleReviewEligibility(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	productID := r.URL.Query().Get("product_id")
	if customerID == "" || productID == "" {
		s.respondError(w, http.StatusBadRequest, "customer_id and product_id query parameters are required")
		return
	}

	eligibility, err := s.gate.CanReview(customerID, productID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, eligibilityResponse{
		Eligible:        eligibility.Eligible,
		AlreadyReviewed: eligibility.AlreadyReviewed,
	})
}
