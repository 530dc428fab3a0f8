package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aretw0/bpmgate/pkg/catalog"
	"github.com/aretw0/bpmgate/pkg/domain"
)

// SaveUser handles POST /api/users.
func (s *Server) SaveUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if err := decodeBody(r, &u); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	saved, err := s.Catalog.SaveUser(r.Context(), u)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// FindUsersByName handles GET /api/users?name=.
func (s *Server) FindUsersByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	users, err := s.Catalog.FindUsersByName(r.Context(), name)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// FindGmailUsers handles GET /api/users/gmail.
func (s *Server) FindGmailUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Catalog.FindGmailUsers(r.Context())
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// SaveProduct handles POST /api/products.
func (s *Server) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := decodeBody(r, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	saved, err := s.Catalog.SaveProduct(r.Context(), p)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// FindProductsPricedAbove handles GET /api/products?minPrice=.
func (s *Server) FindProductsPricedAbove(w http.ResponseWriter, r *http.Request) {
	price, err := strconv.ParseFloat(r.URL.Query().Get("minPrice"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("minPrice must be a number"))
		return
	}
	products, err := s.Catalog.FindProductsPricedAbove(r.Context(), price)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// FindExpensiveProducts handles GET /api/products/expensive.
func (s *Server) FindExpensiveProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.Catalog.FindExpensiveProducts(r.Context())
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) writeCatalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrInvalid) {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	s.writeError(w, err)
}
