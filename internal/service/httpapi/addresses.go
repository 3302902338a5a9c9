package httpapi

import (
	"net/http"

	"github.com/expirians/storefront/internal/domain"
)

type addressRequest struct {
	CustomerID   string `json:"customer_id"`
	Description  string `json:"description"`
	PostalCode   string `json:"postal_code"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
}

func (r addressRequest) toDomain() domain.Address {
	return domain.Address{
		CustomerID:   r.CustomerID,
		Description:  r.Description,
		PostalCode:   r.PostalCode,
		Street:       r.Street,
		Number:       r.Number,
		Complement:   r.Complement,
		Neighborhood: r.Neighborhood,
		City:         r.City,
	}
}

func (s *Server) handleAddAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	added, err := s.registry.AddAddress(req.toDomain())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toAddressResponse(added))
}

func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		s.respondError(w, http.StatusBadRequest, "customer_id query parameter is required")
		return
	}

	addresses, err := s.registry.ListAddresses(customerID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	result := make([]addressResponse, 0, len(addresses))
	for _, a := range addresses {
		result = append(result, toAddressResponse(a))
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"addresses": result})
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	address := req.toDomain()
	address.ID = r.PathValue("id")

	updated, err := s.registry.UpdateAddress(address)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toAddressResponse(updated))
}

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		s.respondError(w, http.StatusBadRequest, "customer_id query parameter is required")
		return
	}

	if err := s.registry.DeleteAddress(customerID, r.PathValue("id")); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}
