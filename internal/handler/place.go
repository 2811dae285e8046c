package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/travel-log/internal/domain"
)

// Suggested download names of an export.
const (
	ExportFileName    = "travel-log.json"
	ExportCSVFileName = "travel-log.csv"
)

// ImportResponse is the body of POST /places/import.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// ListPlaces handles GET /places.
func (s *Server) ListPlaces(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(r)
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	rows, err := s.places.List(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.PlaceRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// CreatePlace handles POST /places. Any id or owner_id in the body is ignored.
func (s *Server) CreatePlace(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(r)
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	var row domain.PlaceRow
	if err := decodeBody(r, &row); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.places.Create(r.Context(), owner, row)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdatePlace handles PATCH /places/{id}. Only the fields present in the
// body change.
func (s *Server) UpdatePlace(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.ownerAndID(w, r)
	if !ok {
		return
	}
	var patch domain.PlacePatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.places.Update(r.Context(), owner, id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeletePlace handles DELETE /places/{id}.
func (s *Server) DeletePlace(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.ownerAndID(w, r)
	if !ok {
		return
	}
	if err := s.places.Delete(r.Context(), owner, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportPlaces handles GET /places/export.
// Use ?format=csv to receive CSV; default is the JSON interchange format.
func (s *Server) ExportPlaces(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(r)
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	var (
		data        []byte
		err         error
		contentType string
		name        string
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		data, err = s.places.Export(r.Context(), owner)
		contentType, name = "application/json; charset=utf-8", ExportFileName
	case "csv":
		data, err = s.places.ExportCSV(r.Context(), owner)
		contentType, name = "text/csv; charset=utf-8", ExportCSVFileName
	default:
		err = fmt.Errorf("%w: unsupported export format %q", domain.ErrValidation, format)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ImportPlaces handles POST /places/import.
func (s *Server) ImportPlaces(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(r)
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.places.Import(r.Context(), owner, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Imported: n})
}

// ownerAndID resolves the caller and the {id} path parameter. A malformed
// id cannot name any row, so it is answered with 404.
func (s *Server) ownerAndID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	owner, ok := callerID(r)
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorBody(w, http.StatusNotFound, "not_found", "place not found")
		return uuid.Nil, uuid.Nil, false
	}
	return owner, id, true
}
